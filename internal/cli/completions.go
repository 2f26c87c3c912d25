package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// sslModes contains valid PostgreSQL SSL modes for shell completion.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

var (
	ifExistsPolicies = []string{"fail", "replace", "append"}
	authMethods      = []string{"standard", "cert", "aws", "google", "azure"}
	exportFormats    = []string{"csv", "parquet"}
	logFormats       = []string{"text", "json"}
)

func completeFrom(values []string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		var matches []string
		for _, v := range values {
			if strings.HasPrefix(v, toComplete) {
				matches = append(matches, v)
			}
		}
		return matches, cobra.ShellCompDirectiveNoFileComp
	}
}

var (
	completeSSLModes      = completeFrom(sslModes)
	completeIfExists      = completeFrom(ifExistsPolicies)
	completeAuthMethods   = completeFrom(authMethods)
	completeExportFormats = completeFrom(exportFormats)
	completeLogFormats    = completeFrom(logFormats)
)

// completeInputs lets the shell complete file and directory names.
func completeInputs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return nil, cobra.ShellCompDirectiveDefault
}
