package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage contract reviews",
}

var reviewCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new review",
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		profile, _ := cmd.Flags().GetString("profile")
		if title == "" {
			return fmt.Errorf("--title is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/reviews", map[string]string{
			"title":   title,
			"profile": profile,
		})
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Created review %s", result["id"])
		fmt.Println(result["id"])
		return nil
	},
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviews",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/reviews")
		if err != nil {
			return err
		}

		var reviews []struct {
			ID      string `json:"id"`
			Title   string `json:"title"`
			Profile string `json:"profile"`
		}
		if err := decodeJSON(resp, &reviews); err != nil {
			return err
		}

		for _, rv := range reviews {
			fmt.Printf("%s  %-10s  %s\n", rv.ID, rv.Profile, rv.Title)
		}
		return nil
	},
}

// --- doc ---

var docCmd = &cobra.Command{
	Use:   "doc",
	Short: "Manage review documents",
}

var docAddCmd = &cobra.Command{
	Use:   "add <review-id> <file>",
	Short: "Add a document to a review",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reviewID, path := args[0], args[1]

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		name := filepath.Base(path)
		req := map[string]string{"name": name}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			req["type"] = "file"
			req["contentType"] = "application/pdf"
			req["content"] = base64.StdEncoding.EncodeToString(data)
		} else {
			req["content"] = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/reviews/"+reviewID+"/documents", req)
		if err != nil {
			return err
		}

		var result struct {
			ID    string `json:"id"`
			Chars int    `json:"chars"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Added %s (%d chars) as %s", name, result.Chars, result.ID)
		return nil
	},
}

// --- analyze ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze <review-id>",
	Short: "Run the analysis pipeline for a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		intent, _ := cmd.Flags().GetString("intent")
		profile, _ := cmd.Flags().GetString("profile")
		topK, _ := cmd.Flags().GetInt("top-k")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		req := map[string]any{}
		if intent != "" {
			req["intent"] = intent
		}
		if profile != "" {
			req["profile"] = profile
		}
		if topK > 0 {
			req["topK"] = topK
		}

		resp, err := client.post(cmd.Context(), "/reviews/"+args[0]+"/analyze", req)
		if err != nil {
			return err
		}

		var result json.RawMessage
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		var pretty map[string]any
		if err := json.Unmarshal(result, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(result))
		}
		return nil
	},
}

// --- result ---

var resultCmd = &cobra.Command{
	Use:   "result <review-id>",
	Short: "Show the latest persisted analysis for a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/reviews/"+args[0]+"/analysis")
		if err != nil {
			return err
		}

		var result json.RawMessage
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		var pretty map[string]any
		if err := json.Unmarshal(result, &pretty); err == nil {
			out, _ := json.MarshalIndent(pretty, "", "  ")
			fmt.Println(string(out))
		} else {
			fmt.Println(string(result))
		}
		return nil
	},
}

func init() {
	reviewCreateCmd.Flags().String("title", "", "title for the review")
	reviewCreateCmd.Flags().String("profile", "", "retrieval profile (fast, balanced, deep)")
	reviewCmd.AddCommand(reviewCreateCmd)
	reviewCmd.AddCommand(reviewListCmd)

	docCmd.AddCommand(docAddCmd)

	analyzeCmd.Flags().String("intent", "", "analysis intent (strict_summary, risk_triage)")
	analyzeCmd.Flags().String("profile", "", "retrieval profile override")
	analyzeCmd.Flags().Int("top-k", 0, "hits per retrieval query")
}
