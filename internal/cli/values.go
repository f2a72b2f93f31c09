package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/rcliao/visitor-store/internal/model"
	"github.com/rcliao/visitor-store/internal/record"
)

// parseTTL parses a TTL string like "7d", "24h", "30m" into a time.Duration.
// Anything time.ParseDuration accepts ("1500ms", "1h30m") works too.
var ttlRegex = regexp.MustCompile(`^(\d+)([dhms])$`)

func parseTTL(s string) (time.Duration, error) {
	m := ttlRegex.FindStringSubmatch(s)
	if m == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid format %q (use e.g. 7d, 24h, 30m, 60s)", s)
		}
		return d, nil
	}
	n, _ := strconv.Atoi(m[1])
	switch m[2] {
	case "d":
		return time.Duration(n) * 24 * time.Hour, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "s":
		return time.Duration(n) * time.Second, nil
	}
	return 0, fmt.Errorf("unknown unit %q", m[2])
}

// parseValue treats valid JSON as JSON and anything else as a string.
func parseValue(s string) json.RawMessage {
	s = strings.TrimSpace(s)
	if s != "" && gjson.Valid(s) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}

// readValue returns the joined positional args, or stdin when it is piped.
func readValue(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if stat != nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", fmt.Errorf("value is required (positional arg or stdin)")
}

// addRecordFlags registers the write option flags shared by set and update.
func addRecordFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("category", "c", "necessary", "Category: necessary, analytics, marketing")
	cmd.Flags().String("lifetime", "permanent", "Lifetime: permanent, session, temporary")
	cmd.Flags().String("ttl", "", "Expiry (e.g. 7d, 24h, 30m); implies temporary")
	cmd.Flags().BoolP("session", "s", false, "Shorthand for --lifetime session")
}

func recordOptions(cmd *cobra.Command) (record.WriteOptions, error) {
	cat, _ := cmd.Flags().GetString("category")
	life, _ := cmd.Flags().GetString("lifetime")
	ttlStr, _ := cmd.Flags().GetString("ttl")
	session, _ := cmd.Flags().GetBool("session")

	c, err := model.ParseCategory(cat)
	if err != nil {
		return record.WriteOptions{}, err
	}
	l, err := model.ParseLifetime(life)
	if err != nil {
		return record.WriteOptions{}, err
	}
	if session {
		l = model.Session
	}
	o := record.WriteOptions{Category: c, Lifetime: l}
	if ttlStr != "" {
		d, err := parseTTL(ttlStr)
		if err != nil {
			return o, fmt.Errorf("invalid ttl: %w", err)
		}
		o.TTL = d
	}
	return o.Normalize()
}

// readOptions returns options selecting the tier for reads.
func readOptions(cmd *cobra.Command) record.WriteOptions {
	session, _ := cmd.Flags().GetBool("session")
	if session {
		return record.SessionNecessary
	}
	return record.DurableNecessary
}
