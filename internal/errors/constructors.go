package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *SitepackError {
	return New(CategoryConfig, SeverityFatal, "site manifest not found").
		WithContext("path", path)
}

func ConfigInvalid(path string, cause error) *SitepackError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "site manifest invalid").
		WithContext("path", path)
}

func ValidationFailed(field, reason string) *SitepackError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Build pipeline errors

func BuildFailed(stage string, cause error) *SitepackError {
	return Wrap(cause, CategoryBuild, SeverityFatal, "build failed").
		WithContext("stage", stage)
}

func FilterFailed(asset, filter string, cause error) *SitepackError {
	return Wrap(cause, CategoryFilter, SeverityFatal, "asset filter failed").
		WithContext("asset", asset).
		WithContext("filter", filter)
}

func TemplateFailed(template string, cause error) *SitepackError {
	return Wrap(cause, CategoryTemplate, SeverityFatal, "template rendering failed").
		WithContext("template", template)
}

func FileSystemError(operation string, cause error) *SitepackError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "file operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *SitepackError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
