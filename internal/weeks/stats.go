package weeks

// Stats summarizes a life grid for status displays.
type Stats struct {
	CurrentWeek    int
	TotalWeeks     int
	RemainingWeeks int
	Progress       float64 // Percentage of the grid already lived, capped at 100.
	Age            int
	Milestones     int
}

// ComputeStats derives the summary from the current week, the life expectancy
// and the number of annotated weeks.
func ComputeStats(currentWeek, lifeExpectancy, milestones int) Stats {
	total := TotalWeeks(lifeExpectancy)
	if currentWeek < 1 {
		currentWeek = 1
	}

	remaining := max(0, total-currentWeek+1)
	progress := min(100, float64(currentWeek)/float64(total)*100)

	return Stats{
		CurrentWeek:    currentWeek,
		TotalWeeks:     total,
		RemainingWeeks: remaining,
		Progress:       progress,
		Age:            AgeFromWeek(currentWeek),
		Milestones:     milestones,
	}
}
