// Package git reports which source revision a site was built from.
package git
