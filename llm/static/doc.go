// Package static provides a canned, in-process provider used by tests and
// local demos. It implements the full provider contract without any network.
package static
