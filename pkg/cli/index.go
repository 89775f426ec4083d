package cli

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/convivia-lab/convivia/pkg/cli/config"
	"github.com/convivia-lab/convivia/pkg/domain/interfaces"
	"github.com/convivia-lab/convivia/pkg/domain/model"
	"github.com/convivia-lab/convivia/pkg/domain/types"
	"github.com/convivia-lab/convivia/pkg/service/notion"
	"github.com/convivia-lab/convivia/pkg/service/search"
	"github.com/convivia-lab/convivia/pkg/utils/logging"
)

func cmdIndex() *cli.Command {
	var since time.Duration
	var legalDatabaseID string
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var llmCfg config.LLM
	var notionCfg config.Notion

	flags := []cli.Flag{
		&cli.DurationFlag{
			Name:        "since",
			Usage:       "Index pages edited within this window (e.g. 24h, 168h)",
			Value:       24 * time.Hour,
			Sources:     cli.EnvVars("CONVIVIA_INDEX_SINCE"),
			Destination: &since,
		},
		&cli.StringFlag{
			Name:        "legal-database-id",
			Usage:       "Notion database ID of the shared legal corpus",
			Sources:     cli.EnvVars("CONVIVIA_LEGAL_DATABASE_ID"),
			Destination: &legalDatabaseID,
		},
	}
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, llmCfg.Flags()...)
	flags = append(flags, notionCfg.Flags()...)

	return &cli.Command{
		Name:    "index",
		Aliases: []string{"i"},
		Usage:   "Ingest policy documents from Notion into the search index",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if _, err := appCfg.Configure(); err != nil {
				return goerr.Wrap(err, "failed to load school configuration")
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			llm, err := llmCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize LLM client")
			}

			notionSvc, err := notionCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to initialize notion service")
			}

			policySearch, err := search.New(llm, repo.Policy())
			if err != nil {
				return goerr.Wrap(err, "failed to initialize policy search")
			}

			indexer := &policyIndexer{
				notion:   notionSvc,
				search:   policySearch,
				policies: repo.Policy(),
				since:    time.Now().Add(-since),
			}

			eg, gctx := errgroup.WithContext(ctx)
			eg.SetLimit(4)

			for schoolID, dbID := range appCfg.NotionDatabases() {
				eg.Go(func() error {
					return indexer.indexDatabase(gctx, schoolID, types.PolicyScopeSchool, dbID)
				})
			}
			if legalDatabaseID != "" {
				eg.Go(func() error {
					return indexer.indexDatabase(gctx, "", types.PolicyScopeLegal, legalDatabaseID)
				})
			}

			if err := eg.Wait(); err != nil {
				return goerr.Wrap(err, "policy indexing failed")
			}

			logging.Default().Info("Policy indexing completed")
			return nil
		},
	}
}

type policyIndexer struct {
	notion   notion.Service
	search   interfaces.PolicySearch
	policies interfaces.PolicyRepository
	since    time.Time
}

func (x *policyIndexer) indexDatabase(ctx context.Context, schoolID string, scope types.PolicyScope, dbID string) error {
	logger := logging.Default().With("school_id", schoolID, "scope", scope, "db_id", dbID)

	var indexed int
	for page, err := range x.notion.QueryUpdatedPages(ctx, dbID, x.since) {
		if err != nil {
			return goerr.Wrap(err, "failed to read policy page", goerr.V("db_id", dbID))
		}
		if strings.TrimSpace(page.Markdown) == "" {
			logger.Warn("Skipping empty policy page", "page_id", page.ID, "title", page.Title)
			continue
		}

		embedding, err := x.search.Embed(ctx, page.Title+"\n\n"+page.Markdown)
		if err != nil {
			return goerr.Wrap(err, "failed to embed policy page", goerr.V("page_id", page.ID))
		}

		doc := &model.PolicyDocument{
			ID:        model.PolicyDocumentID(page.ID),
			Scope:     scope,
			Title:     page.Title,
			Content:   page.Markdown,
			SourceURL: page.URL,
			Embedding: embedding,
			SourcedAt: page.LastEditedTime,
		}
		if _, err := x.policies.Put(ctx, schoolID, doc); err != nil {
			return goerr.Wrap(err, "failed to store policy fragment", goerr.V("page_id", page.ID))
		}

		indexed++
	}

	logger.Info("Indexed policy database", "pages", indexed)
	return nil
}
