// Package daemon keeps a site up to date after the first build.
//
// Watch rebuilds when files under the asset, template or copy-input
// directories change. Schedule rebuilds on a fixed interval or cron
// expression. Both funnel requests through a Runner, which executes at most
// one build at a time and collapses requests arriving during a build into a
// single follow-up build. Canceling the context stops new builds from
// starting; a build that is already running completes.
package daemon
