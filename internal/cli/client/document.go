package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// CreateDocumentRequest represents the create document API request.
type CreateDocumentRequest struct {
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	SkillID     string   `json:"skill_id"`
	Category    string   `json:"category,omitempty"`
	Source      string   `json:"source,omitempty"`
	Criticality string   `json:"criticality,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Status      string   `json:"status,omitempty"`
}

// DocumentCmd creates the document command group.
func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "document",
		Aliases: []string{"doc"},
		Short:   "Manage knowledge documents",
	}

	cmd.AddCommand(documentAddCmd())
	cmd.AddCommand(documentGetCmd())
	cmd.AddCommand(documentListCmd())
	cmd.AddCommand(documentSearchCmd())
	cmd.AddCommand(documentUpdateCmd())
	cmd.AddCommand(documentDeleteCmd())
	cmd.AddCommand(documentRefreshCmd())

	return cmd
}

func documentAddCmd() *cobra.Command {
	var (
		file        string
		title       string
		skillID     string
		category    string
		source      string
		criticality string
		tags        []string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a knowledge document from stdin or file",
		Long: `Add a knowledge document. The content comes from --file or stdin; the
metadata comes from flags.

Examples:
  # Add from a text file
  skillverify document add --file hygiene.txt --title "Hand Hygiene" --skill hand-hygiene

  # Add from stdin
  cat notes.md | skillverify document add --title "Vital Signs" --skill vital-signs --criticality high`,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(file)
			if err != nil {
				return err
			}

			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Post("/documents", CreateDocumentRequest{
				Title:       title,
				Content:     content,
				SkillID:     skillID,
				Category:    category,
				Source:      source,
				Criticality: criticality,
				Tags:        tags,
				Status:      status,
			})
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Content file (reads stdin if omitted)")
	cmd.Flags().StringVar(&title, "title", "", "Document title (required)")
	cmd.Flags().StringVar(&skillID, "skill", "", "Skill this document belongs to (required)")
	cmd.Flags().StringVar(&category, "category", "", "Document category")
	cmd.Flags().StringVar(&source, "source", "", "Source attribution")
	cmd.Flags().StringVar(&criticality, "criticality", "", "Criticality: high, medium or low")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	cmd.Flags().StringVar(&status, "status", "", "Editorial status: draft, published or archived")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("skill")

	return cmd
}

func documentGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a knowledge document by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Get("/documents/" + url.PathEscape(args[0]))
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}
}

func documentListCmd() *cobra.Command {
	var (
		skillID     string
		category    string
		criticality string
		status      string
		cursor      string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List knowledge documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			if skillID != "" {
				query.Set("skillId", skillID)
			}
			if category != "" {
				query.Set("category", category)
			}
			if criticality != "" {
				query.Set("criticality", criticality)
			}
			if status != "" {
				query.Set("status", status)
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			path := "/documents"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			resp, err := api.Get(path)
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().StringVar(&skillID, "skill", "", "Filter by skill")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	cmd.Flags().StringVar(&criticality, "criticality", "", "Filter by criticality")
	cmd.Flags().StringVar(&status, "status", "", "Filter by editorial status")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from a previous page")
	cmd.Flags().IntVar(&limit, "limit", 0, "Page size")

	return cmd
}

func documentSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents by title or content text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("q", args[0])
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}

			resp, err := api.Get("/documents/search?" + query.Encode())
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results")
	return cmd
}

func documentUpdateCmd() *cobra.Command {
	var (
		file        string
		title       string
		category    string
		criticality string
		tags        []string
		status      string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a knowledge document",
		Long: `Update a knowledge document. Only the provided flags change; updating
the title or content re-embeds the document and bumps its version.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			body := map[string]interface{}{}
			if cmd.Flags().Changed("title") {
				body["title"] = title
			}
			if file != "" {
				content, err := readContent(file)
				if err != nil {
					return err
				}
				body["content"] = content
			}
			if cmd.Flags().Changed("category") {
				body["category"] = category
			}
			if cmd.Flags().Changed("criticality") {
				body["criticality"] = criticality
			}
			if cmd.Flags().Changed("tag") {
				body["tags"] = tags
			}
			if cmd.Flags().Changed("status") {
				body["status"] = status
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to update: provide at least one flag")
			}

			resp, err := api.Put("/documents/"+url.PathEscape(args[0]), body)
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "New content file")
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&criticality, "criticality", "", "New criticality")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "New tags (repeatable, replaces existing)")
	cmd.Flags().StringVar(&status, "status", "", "New editorial status")

	return cmd
}

func documentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a knowledge document and its vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			if _, err := api.Delete("/documents/" + url.PathEscape(args[0])); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func documentRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <id>",
		Short: "Re-chunk and re-embed a document's vectors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}
			resp, err := api.Post("/documents/"+url.PathEscape(args[0])+"/embeddings", nil)
			if err != nil {
				return err
			}
			return printData(resp)
		},
	}
}

func readContent(file string) (string, error) {
	var data []byte
	var err error
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("content is empty")
	}
	return string(data), nil
}

func printData(resp *APIResponse) error {
	var pretty interface{}
	if err := json.Unmarshal(resp.Data, &pretty); err != nil {
		fmt.Println(string(resp.Data))
		return nil
	}
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
