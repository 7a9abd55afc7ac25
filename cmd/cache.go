package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var cacheAddr string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the result cache of a running service",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print cache hit rate, size and estimated memory",
	RunE: func(_ *cobra.Command, _ []string) error {
		return adminCall(http.MethodGet, "/admin/cache/stats")
	},
}

var cacheTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the most accessed cache entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, _ := cmd.Flags().GetInt("n")
		return adminCall(http.MethodGet, fmt.Sprintf("/admin/cache/top?n=%d", n))
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Trigger an expired-entry cleanup",
	RunE: func(_ *cobra.Command, _ []string) error {
		return adminCall(http.MethodPost, "/admin/cache/purge")
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			prompt := promptui.Select{
				Label: "Clear the entire result cache?",
				Items: []string{PromptYes, PromptNo},
			}
			_, action, err := prompt.Run()
			if err != nil {
				return err
			}
			if action != PromptYes {
				return nil
			}
		}
		return adminCall(http.MethodPost, "/admin/cache/clear")
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.PersistentFlags().StringVar(&cacheAddr, "addr", "http://localhost:8080", "base address of the running service")

	cacheTopCmd.Flags().IntP("n", "n", 10, "number of entries to show")
	cacheClearCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")

	cacheCmd.AddCommand(cacheStatsCmd, cacheTopCmd, cachePurgeCmd, cacheClearCmd)
}

func adminCall(method, path string) error {
	url := strings.TrimRight(cacheAddr, "/") + path

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		fmt.Println(strings.TrimSpace(string(body)))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}
