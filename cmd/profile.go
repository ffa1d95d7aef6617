package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var flagProfileJSON bool

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the user's aggregated profile",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

func init() {
	profileCmd.Flags().BoolVar(&flagProfileJSON, "json", false, "Print the profile as JSON")
	rootCmd.AddCommand(profileCmd)
}

func runProfile(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	user, err := resolveUser(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	p, err := st.Load(ctx, user)
	if err != nil {
		return fmt.Errorf("cannot load profile: %w", err)
	}
	if flagProfileJSON {
		return printJSON(p)
	}
	n, err := st.Count(ctx, user)
	if err != nil {
		return fmt.Errorf("cannot count entries: %w", err)
	}

	printSection(fmt.Sprintf("Profile: %s", user))
	printInfo("entries", fmt.Sprintf("%d", n))
	printInfo("dominant vibe", p.DominantVibe)
	printInfo("last theme", joinOrDash(p.LastTheme))
	printInfo("top themes", joinOrDash(p.TopThemes))
	printInfo("traits", joinOrDash(p.TraitPool))
	printBullet("Theme count:")
	printCounter(p.ThemeCount)
	printBullet("Vibe count:")
	printCounter(p.VibeCount)
	printBullet("Bucket count:")
	printCounter(p.BucketCount)
	return nil
}
