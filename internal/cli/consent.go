package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/model"
)

func init() {
	consentCmd := &cobra.Command{
		Use:   "consent",
		Short: "Cookie consent decision",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the current decision and banner state",
		Run:   runConsentShow,
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Record a decision, replacing the previous one",
		Long:  "Record a consent decision. Necessary is always granted. Records of categories no longer granted are purged.",
		Run:   runConsentSet,
	}
	setCmd.Flags().Bool("analytics", false, "Grant analytics")
	setCmd.Flags().Bool("marketing", false, "Grant marketing")
	setCmd.Flags().Bool("all", false, "Grant every category")

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Forget the decision and the records it allowed",
		Run:   runConsentReset,
	}

	dismissCmd := &cobra.Command{
		Use:   "dismiss",
		Short: "Dismiss the banner for this session",
		Run:   runConsentDismiss,
	}

	consentCmd.AddCommand(showCmd, setCmd, resetCmd, dismissCmd)
	RootCmd.AddCommand(consentCmd)
}

type consentState struct {
	Decision         *model.ConsentDecision `json:"decision"`
	Dismissed        bool                   `json:"dismissed_this_session"`
	ShouldShowBanner bool                   `json:"should_show_banner"`
	Revoked          []model.Category       `json:"revoked,omitempty"`
}

func runConsentShow(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	ctx := cmd.Context()
	st := consentState{
		Dismissed:        vc.Consent.BannerDismissed(ctx),
		ShouldShowBanner: vc.Consent.ShouldShowBanner(ctx),
	}
	if d, ok := vc.Consent.Decision(ctx); ok {
		st.Decision = &d
	}
	printJSON(cmd, st)
}

func runConsentSet(cmd *cobra.Command, args []string) {
	analytics, _ := cmd.Flags().GetBool("analytics")
	marketing, _ := cmd.Flags().GetBool("marketing")
	all, _ := cmd.Flags().GetBool("all")

	vc := mustOpen(cmd)
	defer vc.Close()

	d := model.ConsentDecision{
		Necessary: true,
		Analytics: analytics || all,
		Marketing: marketing || all,
	}
	revoked, err := vc.Consent.SetConsent(cmd.Context(), d)
	if err != nil {
		exitErr("set consent", err)
	}
	saved, _ := vc.Consent.Decision(cmd.Context())
	printJSON(cmd, consentState{Decision: &saved, Revoked: revoked})
}

func runConsentReset(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	vc.ResetConsent(cmd.Context())
	printJSON(cmd, consentState{ShouldShowBanner: vc.Consent.ShouldShowBanner(cmd.Context())})
}

func runConsentDismiss(cmd *cobra.Command, args []string) {
	vc := mustOpen(cmd)
	defer vc.Close()

	ctx := cmd.Context()
	vc.Consent.DismissBanner(ctx)
	printJSON(cmd, consentState{
		Dismissed:        vc.Consent.BannerDismissed(ctx),
		ShouldShowBanner: vc.Consent.ShouldShowBanner(ctx),
	})
}
