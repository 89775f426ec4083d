package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/convivia-lab/convivia/pkg/cli/config"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/service/search"
	"github.com/convivia-lab/convivia/pkg/usecase"
)

func cmdChat() *cli.Command {
	var schoolID string
	var sessionID string
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var llmCfg config.LLM

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "school",
			Usage:       "School ID to chat as (must exist in the config file)",
			Required:    true,
			Sources:     cli.EnvVars("CONVIVIA_SCHOOL"),
			Destination: &schoolID,
		},
		&cli.StringFlag{
			Name:        "session",
			Usage:       "Session ID to resume (a new one is generated when empty)",
			Destination: &sessionID,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Interactive terminal chat (development tool)",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			registry, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load school configuration")
			}
			if _, err := registry.Get(schoolID); err != nil {
				return goerr.Wrap(err, "unknown school", goerr.V("school_id", schoolID))
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer repo.Close() //nolint:errcheck // interactive tool

			llm, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			policySearch, err := search.New(llm, repo.Policy())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize policy search")
			}

			uc := usecase.New(repo, llm,
				usecase.WithSchoolRegistry(registry),
				usecase.WithSearch(policySearch),
			)

			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			dim := color.New(color.Faint)
			prompt := color.New(color.FgGreen, color.Bold)
			suggest := color.New(color.FgYellow)

			dim.Printf("session %s (school %s), Ctrl-D to exit\n", sessionID, schoolID)

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for {
				prompt.Print("> ")
				if !scanner.Scan() {
					fmt.Println()
					return scanner.Err()
				}
				message := strings.TrimSpace(scanner.Text())
				if message == "" {
					continue
				}

				err := uc.StreamTurn(ctx, usecase.TurnInput{
					SchoolID:  schoolID,
					SessionID: sessionID,
					Message:   message,
				}, func(ev model.ChatEvent) error {
					switch ev.Type {
					case types.ChatEventThinking:
						dim.Printf("… %s\n", ev.Content)
					case types.ChatEventContent:
						fmt.Println(ev.Content)
					case types.ChatEventSuggestions:
						for _, s := range ev.Suggestions {
							suggest.Printf("  - %s\n", s)
						}
					}
					return nil
				})
				if err != nil {
					color.Red("error: %v", err)
				}
			}
		},
	}
}
