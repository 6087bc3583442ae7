package cli

import (
	"github.com/spf13/cobra"

	"lab-quiz-player/internal/infra/postgres"
	"lab-quiz-player/internal/seed"
)

// NewSeedCmd loads quizzes from a YAML authoring file into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load quizzes from a YAML file into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			quizzes, err := seed.Load(file)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
				return err
			}
			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.SeedQuizzes(ctx, db, quizzes); err != nil {
				return err
			}
			questions := 0
			for _, q := range quizzes {
				questions += len(q.Questions)
			}
			log.Info().Int("quizzes", len(quizzes)).Int("questions", questions).Str("file", file).Msg("quizzes seeded")
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "config/quizzes.example.yaml", "quiz authoring file")
	return cmd
}
