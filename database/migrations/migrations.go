// Package migrations registers the storefront schema with pkg/migration.
// Importing it for side effects is enough; cmd/freshbulk and pkg/testkit do.
package migrations
