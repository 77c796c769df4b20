package cmd

import (
	"time"

	"github.com/brk3/habitcal/pkg/habit"
)

func todayIn(loc *time.Location) string {
	return habit.DateOf(time.Now().In(loc))
}
