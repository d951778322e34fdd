package templates

import (
	"maps"
	"html/template"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// BuiltinFuncs are available in every template. Functions passed to Load
// replace builtins of the same name.
func BuiltinFuncs() template.FuncMap {
	return template.FuncMap{
		"title": caser(cases.Title),
		"upper": caser(cases.Upper),
		"lower": caser(cases.Lower),
	}
}

// caser adapts a cases constructor to a template function taking the text
// and an optional BCP 47 language tag ("und" when omitted).
func caser(newCaser func(language.Tag, ...cases.Option) cases.Caser) func(string, ...string) (string, error) {
	return func(s string, lang ...string) (string, error) {
		tag := language.Und
		if len(lang) > 0 {
			t, err := language.Parse(lang[0])
			if err != nil {
				return "", err
			}
			tag = t
		}
		return newCaser(tag).String(s), nil
	}
}

func withBuiltinTemplateData(data map[string]any) map[string]any {
	needDate := data == nil
	needDateTime := data == nil
	if data != nil {
		if _, ok := data["Date"]; !ok {
			needDate = true
		}
		if _, ok := data["DateTime"]; !ok {
			needDateTime = true
		}
	}

	if !needDate && !needDateTime {
		return data
	}

	out := make(map[string]any, len(data)+2)
	maps.Copy(out, data)

	now := time.Now().UTC()
	if needDate {
		out["Date"] = now.Format("2006-01-02")
	}
	if needDateTime {
		out["DateTime"] = now.Format(time.RFC3339)
	}

	return out
}
