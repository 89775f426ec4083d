// Package notion ingests school policy pages from Notion databases into
// the policy index.
package notion

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/m-mizutani/goerr/v2"
)

type client struct {
	api *notionapi.Client
}

// New creates a Notion service with the provided API token.
func New(token string) (Service, error) {
	if token == "" {
		return nil, goerr.New("Notion API token is required")
	}

	return &client{
		api: notionapi.NewClient(
			notionapi.Token(token),
			notionapi.WithRetry(3), // rate limit (HTTP 429)
		),
	}, nil
}

func (c *client) QueryUpdatedPages(ctx context.Context, dbID string, since time.Time) iter.Seq2[*Page, error] {
	return func(yield func(*Page, error) bool) {
		var cursor notionapi.Cursor

		for {
			onOrAfter := notionapi.Date(since)
			resp, err := c.api.Database.Query(ctx, notionapi.DatabaseID(dbID), &notionapi.DatabaseQueryRequest{
				Filter: &notionapi.TimestampFilter{
					Timestamp: "last_edited_time",
					LastEditedTime: &notionapi.DateFilterCondition{
						OnOrAfter: &onOrAfter,
					},
				},
				StartCursor: cursor,
				PageSize:    100,
			})
			if err != nil {
				yield(nil, goerr.Wrap(err, "failed to query policy database", goerr.V("dbID", dbID), goerr.V("since", since)))
				return
			}

			for _, pageObj := range resp.Results {
				page, err := c.fetchPage(ctx, pageObj.ID.String())
				if err != nil {
					if !yield(nil, err) {
						return
					}
					continue
				}
				if !yield(page, nil) {
					return
				}
			}

			if !resp.HasMore {
				break
			}
			cursor = resp.NextCursor
		}
	}
}

func (c *client) fetchPage(ctx context.Context, pageID string) (*Page, error) {
	pageObj, err := c.api.Page.Get(ctx, notionapi.PageID(pageID))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get page", goerr.V("pageID", pageID))
	}

	var body strings.Builder
	if err := c.renderBlocks(ctx, pageID, &body, 0); err != nil {
		return nil, goerr.Wrap(err, "failed to render page content", goerr.V("pageID", pageID))
	}

	return &Page{
		ID:             pageObj.ID.String(),
		Title:          pageTitle(pageObj),
		URL:            pageObj.URL,
		Markdown:       body.String(),
		CreatedTime:    time.Time(pageObj.CreatedTime),
		LastEditedTime: time.Time(pageObj.LastEditedTime),
	}, nil
}

// renderBlocks walks the block tree depth-first and appends Markdown. Only
// the block types that appear in policy documents are rendered richly;
// anything else degrades to its plain text.
func (c *client) renderBlocks(ctx context.Context, blockID string, sb *strings.Builder, depth int) error {
	var cursor notionapi.Cursor

	listCounter := 0
	for {
		resp, err := c.api.Block.GetChildren(ctx, notionapi.BlockID(blockID), &notionapi.Pagination{
			StartCursor: cursor,
			PageSize:    100,
		})
		if err != nil {
			return goerr.Wrap(err, "failed to get block children", goerr.V("blockID", blockID))
		}

		indent := strings.Repeat("  ", depth)
		for _, blockObj := range resp.Results {
			if blockObj.GetType() == notionapi.BlockTypeNumberedListItem {
				listCounter++
			} else {
				listCounter = 0
			}

			line := renderBlock(blockObj, listCounter)
			if line != "" {
				sb.WriteString(indent)
				sb.WriteString(line)
				sb.WriteString("\n")
			}

			if blockObj.GetHasChildren() {
				if err := c.renderBlocks(ctx, blockObj.GetID().String(), sb, depth+1); err != nil {
					return err
				}
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = notionapi.Cursor(resp.NextCursor)
	}

	return nil
}

func renderBlock(blockObj notionapi.Block, listCounter int) string {
	switch b := blockObj.(type) {
	case *notionapi.ParagraphBlock:
		return richText(b.Paragraph.RichText)
	case *notionapi.Heading1Block:
		return "# " + richText(b.Heading1.RichText)
	case *notionapi.Heading2Block:
		return "## " + richText(b.Heading2.RichText)
	case *notionapi.Heading3Block:
		return "### " + richText(b.Heading3.RichText)
	case *notionapi.BulletedListItemBlock:
		return "- " + richText(b.BulletedListItem.RichText)
	case *notionapi.NumberedListItemBlock:
		return fmt.Sprintf("%d. %s", listCounter, richText(b.NumberedListItem.RichText))
	case *notionapi.QuoteBlock:
		return "> " + richText(b.Quote.RichText)
	case *notionapi.CalloutBlock:
		return "> " + richText(b.Callout.RichText)
	case *notionapi.ToDoBlock:
		mark := "- [ ] "
		if b.ToDo.Checked {
			mark = "- [x] "
		}
		return mark + richText(b.ToDo.RichText)
	case *notionapi.DividerBlock:
		return "---"
	default:
		return ""
	}
}

func richText(parts []notionapi.RichText) string {
	var sb strings.Builder
	for _, rt := range parts {
		text := rt.PlainText
		if rt.Annotations != nil && rt.Annotations.Bold {
			text = "**" + text + "**"
		}
		if rt.Href != "" {
			text = fmt.Sprintf("[%s](%s)", text, rt.Href)
		}
		sb.WriteString(text)
	}
	return sb.String()
}

func pageTitle(pageObj *notionapi.Page) string {
	for _, prop := range pageObj.Properties {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			return richText(title.Title)
		}
	}
	return ""
}
