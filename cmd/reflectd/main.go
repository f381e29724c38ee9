// Package main is the entry point for reflectd, the entitlement and billing
// reconciliation service behind the journaling app.
package main

func main() {
	Execute()
}
