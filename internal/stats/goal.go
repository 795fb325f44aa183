package stats

// DefaultDailyGoal is the goal of a user who never set one.
const DefaultDailyGoal = 4

// GoalProgress is today's standing against the daily solve goal.
type GoalProgress struct {
	Completed  int  `json:"completed"`
	Goal       int  `json:"goal"`
	Remaining  int  `json:"remaining"`
	Percentage int  `json:"percentage"`
	Achieved   bool `json:"achieved"`
}

// Goal compares today's completions with the daily goal. Percentage is
// capped at 100 and Remaining never goes negative.
func Goal(todayCompleted, dailyGoal int) GoalProgress {
	if dailyGoal <= 0 {
		dailyGoal = DefaultDailyGoal
	}

	gp := GoalProgress{
		Completed: todayCompleted,
		Goal:      dailyGoal,
		Achieved:  todayCompleted >= dailyGoal,
	}

	gp.Percentage = Percentage(todayCompleted, dailyGoal)
	if gp.Percentage > 100 {
		gp.Percentage = 100
	}
	if !gp.Achieved {
		gp.Remaining = dailyGoal - todayCompleted
	}
	return gp
}
