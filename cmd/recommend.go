package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentpath/upskiller/internal/logger"
	"github.com/talentpath/upskiller/internal/recommend"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend [skills...]",
	Short: "Resolve learning resources for the given skills without the HTTP layer",
	Run: func(cmd *cobra.Command, args []string) {
		runRecommend(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("category", "c", "SKILL", "category for skills given as arguments (SKILL, FIELD or DEFAULT)")
	recommendCmd.Flags().String("description", "", "free-text description shared by skills given as arguments")
	recommendCmd.Flags().StringP("input", "i", "", "json file with skill queries: [{\"skill\", \"category\", \"description\", \"threshold\"}]")
}

// inputQuery mirrors the inbound record shape accepted over HTTP.
type inputQuery struct {
	Skill       string  `json:"skill"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Threshold   float64 `json:"threshold"`
}

func runRecommend(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	queries, err := collectQueries(cmd, args)
	if err != nil {
		logger.Fatal("collecting skill queries", zap.Error(err))
	}
	if len(queries) == 0 {
		logger.Fatal("no skills given", zap.String("hint", "pass skill names as arguments or a json file via --input"))
	}

	eng, err := buildEngine(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the recommendation engine", zap.Error(err))
	}
	defer eng.Close()

	results := eng.resolver.ResolveAll(ctx, queries)

	pretty, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		logger.Fatal("encoding results", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

func collectQueries(cmd *cobra.Command, args []string) ([]recommend.SkillQuery, error) {
	inputFile, _ := cmd.Flags().GetString("input")
	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", inputFile, err)
		}
		var records []inputQuery
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", inputFile, err)
		}
		queries := make([]recommend.SkillQuery, len(records))
		for i, rec := range records {
			queries[i] = recommend.SkillQuery{
				Skill:       rec.Skill,
				Description: rec.Description,
				Category:    recommend.ParseCategory(rec.Category),
				Threshold:   rec.Threshold,
			}
		}
		return queries, nil
	}

	category, _ := cmd.Flags().GetString("category")
	description, _ := cmd.Flags().GetString("description")

	queries := make([]recommend.SkillQuery, 0, len(args))
	for _, skill := range args {
		queries = append(queries, recommend.SkillQuery{
			Skill:       skill,
			Description: description,
			Category:    recommend.ParseCategory(category),
		})
	}
	return queries, nil
}
