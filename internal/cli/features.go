package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/composable/internal/demo"
)

// FeatureInfo describes a demo feature.
type FeatureInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewFeaturesCommand creates the features command.
func NewFeaturesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "features",
		Short:        "List the demo features scenarios can drive",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var infos []FeatureInfo
			var text strings.Builder
			for _, f := range demo.Features() {
				infos = append(infos, FeatureInfo{Name: f.Name(), Description: f.Description()})
				fmt.Fprintf(&text, "%-10s %s\n", f.Name(), f.Description())
			}
			return rootOpts.formatter(cmd).Success(infos, text.String())
		},
	}
}
