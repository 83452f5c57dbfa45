// Package bugs holds the bug record model and its stores.
//
// A bug's Author is fixed at creation from the authenticated identity and never
// changes. Stores do not authorize; callers check ownership first.
package bugs
