package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/slot-booking/internal/model"
)

type seedOptions struct {
	MerchantUserID uint64
	MerchantName   string
	ServiceName    string
	TaskTitle      string
	Slots          int
	Capacity       int
	Start          time.Time
	Length         time.Duration
}

type seedResult struct {
	MerchantID uint64   `json:"merchant_id"`
	TaskID     uint64   `json:"task_id"`
	SlotIDs    []uint64 `json:"slot_ids"`
}

// defaultSeedOptions starts the first slot at the next full hour after now.
func defaultSeedOptions(now time.Time) seedOptions {
	return seedOptions{
		MerchantUserID: 1,
		MerchantName:   "Demo Studio",
		ServiceName:    "Consultation",
		TaskTitle:      "Open hours",
		Slots:          8,
		Capacity:       3,
		Start:          now.UTC().Truncate(time.Hour).Add(time.Hour),
		Length:         time.Hour,
	}
}

// seed creates one merchant, one service item, one task and back-to-back
// slots.
func seed(ctx context.Context, st storage, o seedOptions) (seedResult, error) {
	if o.Slots <= 0 || o.Capacity <= 0 || o.Length <= 0 {
		return seedResult{}, fmt.Errorf("slots, capacity and length must be positive")
	}
	m := &model.MerchantProfile{UserID: o.MerchantUserID, Name: o.MerchantName}
	if err := st.CreateMerchant(ctx, m); err != nil {
		return seedResult{}, fmt.Errorf("create merchant: %w", err)
	}
	item := &model.ServiceItem{MerchantID: m.ID, Name: o.ServiceName}
	if err := st.CreateServiceItem(ctx, item); err != nil {
		return seedResult{}, fmt.Errorf("create service item: %w", err)
	}
	task := &model.Task{ServiceItemID: item.ID, Title: o.TaskTitle}
	if err := st.CreateTask(ctx, task); err != nil {
		return seedResult{}, fmt.Errorf("create task: %w", err)
	}

	res := seedResult{MerchantID: m.ID, TaskID: task.ID}
	for i := 0; i < o.Slots; i++ {
		start := o.Start.Add(time.Duration(i) * o.Length)
		slot := &model.Slot{TaskID: task.ID, StartTime: start, EndTime: start.Add(o.Length), Capacity: o.Capacity}
		if err := st.CreateSlot(ctx, slot); err != nil {
			return seedResult{}, fmt.Errorf("create slot %d: %w", i, err)
		}
		res.SlotIDs = append(res.SlotIDs, slot.ID)
	}
	return res, nil
}

func newSeedCommand() *cobra.Command {
	o := defaultSeedOptions(time.Now())
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo merchant, task and slots in the configured SQL store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DB.Driver == "memory" {
				return fmt.Errorf("the memory driver does not persist; use serve --seed-demo instead")
			}
			st, err := openStorage(cmd.Context(), cfg.DB, false)
			if err != nil {
				return err
			}
			defer st.Close()

			res, err := seed(cmd.Context(), st, o)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	f := cmd.Flags()
	f.Uint64Var(&o.MerchantUserID, "merchant-user", o.MerchantUserID, "user id that manages the merchant profile")
	f.StringVar(&o.MerchantName, "merchant-name", o.MerchantName, "merchant name")
	f.StringVar(&o.TaskTitle, "task", o.TaskTitle, "task title")
	f.IntVar(&o.Slots, "slots", o.Slots, "number of slots to publish")
	f.IntVar(&o.Capacity, "capacity", o.Capacity, "seats per slot")
	f.DurationVar(&o.Length, "length", o.Length, "length of each slot")
	return cmd
}
