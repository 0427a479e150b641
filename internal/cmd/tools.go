package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vaxhacker/pgtemp/internal/deps"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Show discovery status of the external commands",
	Long: `Report which of the external commands pgtemp orchestrates are
installed: initdb, postgres, psql, createuser, and docker (the container
fallback). Tool path overrides from the config file are honored.`,
	RunE: runTools,
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	file, err := loadFile()
	if err != nil {
		return err
	}

	fmt.Println(header("external tools"))
	for _, tool := range deps.CheckAll(file.Tools.InitDB, file.Tools.Postgres, file.Tools.Psql, file.Tools.CreateUser) {
		fmt.Printf("  %-12s %s\n", tool.Name, describeTool(tool))
	}
	return nil
}

func describeTool(t deps.Tool) string {
	switch t.Status {
	case deps.ToolOK:
		s := okText("ok")
		if t.Version != "" {
			s += " " + t.Version
		}
		return s + "  " + dimText(t.Path)
	case deps.ToolNotFound:
		return errText("not found")
	case deps.ToolExecFailed:
		return errText("exec failed") + " " + dimText(t.Detail)
	default:
		return warnText("unknown version") + " " + dimText(t.Detail)
	}
}
