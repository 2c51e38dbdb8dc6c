package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/verdantmarket/spinwheel/internal/store"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintWheelConfig outputs the wheel configuration in the specified format.
func PrintWheelConfig(cfg *store.WheelConfig, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(cfg)
	case FormatYAML:
		return printYAML(cfg)
	case FormatTable:
		return printSegmentTable(cfg)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintReward outputs a reward in the specified format.
func PrintReward(r *store.Reward, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(r)
	case FormatYAML:
		return printYAML(r)
	case FormatTable:
		return printRewardTable(r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(data)
}

func printSegmentTable(cfg *store.WheelConfig) error {
	fmt.Printf("Cooldown: %.1fh  Updated: %s\n\n",
		cfg.CooldownHours, cfg.UpdatedAt.Format("2006-01-02 15:04:05"))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Weight", "Text", "Payload", "Value"})
	for i, seg := range cfg.Segments {
		value := ""
		switch seg.Payload.Kind {
		case store.PayloadPromoCode:
			value = seg.Payload.PromoCode
		case store.PayloadItem:
			value = seg.Payload.ItemRef
		}
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(seg.Weight, 'g', -1, 64),
			seg.Text,
			string(seg.Payload.Kind),
			value,
		})
	}
	table.Render()
	return nil
}

func printRewardTable(r *store.Reward) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Participant", "Payload", "Won", "Expires", "Claimed"})
	table.Append([]string{
		r.ID,
		r.ParticipantKey,
		string(r.Payload.Kind),
		r.WonAt.Format("2006-01-02 15:04"),
		r.ExpiresAt.Format("2006-01-02 15:04"),
		strconv.FormatBool(r.Claimed),
	})
	table.Render()
	return nil
}
