package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/customs-ai/hs-classify/internal/model"
)

var (
	creditsUser    string
	creditsPlan    string
	creditsBalance int
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect or adjust a user's credit account",
}

var creditsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show a user's account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !cfg.Store.Configured() {
			return eris.New("a database is required (CUSTOMS_STORE_DATABASE_URL)")
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		account, err := st.GetAccount(ctx, creditsUser)
		if err != nil {
			return eris.Wrap(err, "load account")
		}
		if account == nil {
			return eris.Errorf("no account for user %s", creditsUser)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(account)
	},
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Set a user's plan and balance",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if !cfg.Store.Configured() {
			return eris.New("a database is required (CUSTOMS_STORE_DATABASE_URL)")
		}
		if _, ok := model.Plans()[creditsPlan]; !ok {
			return eris.Errorf("unknown plan %q", creditsPlan)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		balance := creditsBalance
		if model.PlanUnlimited(creditsPlan) {
			balance = model.CreditsUnlimited
		} else if !cmd.Flags().Changed("credits") {
			balance = model.PlanCredits(creditsPlan)
		}

		account := model.CreditAccount{
			UserID:    creditsUser,
			Remaining: balance,
			Plan:      creditsPlan,
		}
		if existing, err := st.GetAccount(ctx, creditsUser); err == nil && existing != nil {
			account.Used = existing.Used
		}
		if err := st.UpsertAccount(ctx, account); err != nil {
			return eris.Wrap(err, "upsert account")
		}

		zap.L().Info("account updated",
			zap.String("user_id", creditsUser),
			zap.String("plan", creditsPlan),
			zap.Int("credits_remaining", balance),
		)
		return nil
	},
}

func init() {
	creditsCmd.PersistentFlags().StringVar(&creditsUser, "user", "", "user ID (required)")
	_ = creditsCmd.MarkPersistentFlagRequired("user")

	creditsGrantCmd.Flags().StringVar(&creditsPlan, "plan", "free", "plan ID")
	creditsGrantCmd.Flags().IntVar(&creditsBalance, "credits", 0, "balance override (default: plan allowance)")

	creditsCmd.AddCommand(creditsGetCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	rootCmd.AddCommand(creditsCmd)
}
