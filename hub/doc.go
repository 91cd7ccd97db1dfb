// Package hub resolves model keys to local artifact directories.
//
// A key is either a bare repository id ("org/model"), fetched from the
// default source, or a scheme-qualified location such as
// "gs://bucket/models/bert" or "s3://bucket/models/bert". Sources register
// themselves per scheme from their package init, so the binary only needs a
// blank import:
//
//	import _ "github.com/kbukum/modelkit/hub/gcs"
//
// Fetched artifacts are cached under <cache_dir>/<key>/<revision>. A
// directory only counts as cached once its completion manifest is written,
// so an interrupted fetch is redone on the next resolution.
package hub
