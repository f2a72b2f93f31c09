package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/visitor-store/internal/engagement"
)

func init() {
	cmd := &cobra.Command{
		Use:   "banner",
		Short: "Evaluate the cookie banner policy for this visitor",
		Long: `Evaluate when the cookie banner appears for the current visitor.
With --elapsed, also report whether it is visible at that time since page
load. With --wait, run the policy on real timers and print when it shows.`,
		Run: runBanner,
	}

	cmd.Flags().String("elapsed", "", "Time since page load (e.g. 2s, 1500ms)")
	cmd.Flags().Bool("engaged", false, "Visitor has scrolled or clicked")
	cmd.Flags().Bool("wait", false, "Schedule the banner and wait for it")
	cmd.Flags().String("engage-after", "", "With --wait, simulate engagement after this delay")

	RootCmd.AddCommand(cmd)
}

type bannerReport struct {
	Input    engagement.Input    `json:"input"`
	Decision engagement.Decision `json:"decision"`
	Visible  *bool               `json:"visible,omitempty"`
	ShownAt  string              `json:"shown_at,omitempty"`
}

func runBanner(cmd *cobra.Command, args []string) {
	elapsedStr, _ := cmd.Flags().GetString("elapsed")
	engaged, _ := cmd.Flags().GetBool("engaged")
	wait, _ := cmd.Flags().GetBool("wait")
	engageStr, _ := cmd.Flags().GetString("engage-after")

	vc := mustOpen(cmd)
	defer vc.Close()

	in := vc.BannerInput(cmd.Context())
	rep := bannerReport{Input: in, Decision: vc.Policy.Decide(in)}

	if elapsedStr != "" {
		elapsed, err := parseTTL(elapsedStr)
		if err != nil {
			exitErr("banner", fmt.Errorf("invalid elapsed: %w", err))
		}
		visible := vc.Policy.VisibleAt(in, elapsed, engaged)
		rep.Visible = &visible
	}

	if wait && rep.Decision.Show {
		shown := make(chan time.Duration, 1)
		start := time.Now()
		b := vc.NewBanner(func() { shown <- time.Since(start) })
		defer b.Stop()
		b.Start(in)

		if engageStr != "" {
			after, err := parseTTL(engageStr)
			if err != nil {
				exitErr("banner", fmt.Errorf("invalid engage-after: %w", err))
			}
			t := time.AfterFunc(after, b.NotifyEngaged)
			defer t.Stop()
		}

		select {
		case d := <-shown:
			rep.ShownAt = d.Round(time.Millisecond).String()
		case <-time.After(rep.Decision.Deadline + time.Second):
		case <-cmd.Context().Done():
		}
	}

	printJSON(cmd, rep)
}
