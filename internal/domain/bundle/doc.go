/*
Package bundle resolves bundle names to execution paths.

A Catalog holds the installed bundles and satisfies the controller's
resolver. A Seeder fills it from manifest files found under an apps
directory. Manifests may be YAML, TOML or JSON:

	bundle_name: com.example.notes
	version: 1.2.0
	entry: main.js

The execution path is the entry file, or the manifest's directory when no
entry is given.
*/
package bundle
