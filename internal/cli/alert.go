package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
)

var (
	alertLeague string
	alertSpan   time.Duration
)

var alertCmd = &cobra.Command{
	Use:   "simulate-gap",
	Short: "发送一条模拟断档告警",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertSpan < 0 {
			return errors.New("--span 不能为负数")
		}
		return getApp().SimulateGap(cmd.Context(), alertLeague, alertSpan)
	},
}

func init() {
	alertCmd.Flags().StringVar(&alertLeague, "league", "", "联赛名称")
	alertCmd.Flags().DurationVar(&alertSpan, "span", time.Hour, "模拟断档时长")
}
