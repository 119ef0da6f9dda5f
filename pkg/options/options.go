// Package options defines the generic options interface and flag-name helpers.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." and appends a trailing "." when
// non-empty, producing flag names like "milvus.address" or
// "corpus.milvus.address".
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions is the contract every per-component option struct satisfies.
type IOptions interface {
	// Validate checks the options and may complete derived fields.
	Validate() []error

	// AddFlags registers the options on the flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
