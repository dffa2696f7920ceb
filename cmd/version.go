package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mfi-tools/mpowerctl/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the version number of the tool",

	RunE: func(cmd *cobra.Command, args []string) error {
		if err := doVersion(); err != nil {
			return err
		}

		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Return version as JSON")
	errPanic(viper.GetViper().BindPFlag("version.json", versionCmd.Flags().Lookup("json")))

	rootCmd.AddCommand(versionCmd)
}

type versionResult struct {
	Version  string `json:"version"`
	Revision string `json:"revision"`
}

func doVersion() error {
	v := versionResult{
		Version:  version.Version,
		Revision: versioninfo.Short(),
	}

	if viper.GetBool("version.json") {
		b, err := json.MarshalIndent(v, "", "    ")
		if err != nil {
			return err
		}

		fmt.Println(string(b))
	} else {
		fmt.Printf("mpowerctl version %s (%s)\n", v.Version, v.Revision)
	}

	return nil
}
