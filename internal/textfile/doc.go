// Package textfile turns a directory of Prometheus text-exposition files
// (*.prom, as written for node_exporter's textfile collector) into a metrics
// source for the push client.
//
// Files are parsed with expfmt.TextParser and merged by family name; the
// combined snapshot is cached and swapped atomically on Reload, so Gather is
// cheap and a broken file never clobbers the last good state. Watch keeps the
// snapshot current via fsnotify.
package textfile
