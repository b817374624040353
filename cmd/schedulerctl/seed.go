package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"framestudio/internal/modules/appointment"
	"framestudio/internal/modules/calendar"
	"framestudio/internal/modules/production"
	"framestudio/internal/pkg/apperr"
)

var (
	seedOrders       int
	seedAppointments int
	seedRandom       int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Schedule demo orders and appointments",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedOrders, "orders", 10, "number of orders to schedule")
	seedCmd.Flags().IntVar(&seedAppointments, "appointments", 8, "number of appointments to book")
	seedCmd.Flags().Int64Var(&seedRandom, "seed", 1, "random seed")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	d, err := open("schedulerctl-seed")
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rnd := rand.New(rand.NewSource(seedRandom))

	complexities := []calendar.Complexity{calendar.Simple, calendar.Medium, calendar.Complex}
	now := d.cal.Now()
	scheduled := 0
	for i := 1; i <= seedOrders; i++ {
		req := production.ScheduleOrderRequest{
			OrderID:    int64(1000 + i),
			Complexity: complexities[rnd.Intn(len(complexities))],
			Deadline:   d.cal.StartOfDay(now).AddDate(0, 0, 7+rnd.Intn(14)),
		}
		if i > 1 && rnd.Intn(4) == 0 {
			req.Dependencies = []int64{int64(1000 + i - 1)}
		}
		_, err := d.production.ScheduleOrder(ctx, req)
		switch {
		case err == nil:
			scheduled++
		case errors.Is(err, production.ErrAlreadyScheduled), apperr.KindOf(err) == apperr.KindSchedulingConflict, apperr.KindOf(err) == apperr.KindDependencyUnmet:
			d.log.Warnf("order %d skipped: %v", req.OrderID, err)
		default:
			return fmt.Errorf("schedule order %d: %w", req.OrderID, err)
		}
	}

	types := d.cfg.Calendar.AppointmentTypeNames()
	booked := 0
	for i := 0; i < seedAppointments; i++ {
		typ := calendar.AppointmentType(types[rnd.Intn(len(types))])
		slots, err := d.appointment.GetAvailableSlots(ctx, appointment.SlotQuery{Type: typ, DaysAhead: 14})
		if err != nil {
			return fmt.Errorf("slots for %s: %w", typ, err)
		}
		if len(slots) == 0 {
			continue
		}
		slot := slots[rnd.Intn(min(len(slots), 5))]
		_, err = d.appointment.BookAppointment(ctx, appointment.BookRequest{
			CustomerID:      int64(500 + i),
			Type:            typ,
			AppointmentTime: slot.StartTime,
			Notes:           "seeded",
		})
		if err != nil && apperr.KindOf(err) != apperr.KindSlotUnavailable {
			return fmt.Errorf("book %s: %w", typ, err)
		}
		if err == nil {
			booked++
		}
	}

	d.log.Infof("seed completed: orders=%d appointments=%d", scheduled, booked)
	return nil
}
