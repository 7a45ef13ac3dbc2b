package cli

import (
	"github.com/spf13/cobra"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for monopub.

To load completions:

Bash:
  $ source <(monopub completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ monopub completion bash > /etc/bash_completion.d/monopub
  # macOS:
  $ monopub completion bash > $(brew --prefix)/etc/bash_completion.d/monopub

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ monopub completion zsh > "${fpath[1]}/_monopub"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ monopub completion fish | source

  # To load completions for each session, execute once:
  $ monopub completion fish > ~/.config/fish/completions/monopub.fish

PowerShell:
  PS> monopub completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> monopub completion powershell > monopub.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(stdout, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(stdout)
			}
		},
	}
	return cmd
}
