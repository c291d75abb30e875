package draft

// MyPickNumbers returns the overall 1-based pick numbers owned by the
// team sitting at draftIndex (0-based slot in the round-one order).
// Even rounds run in draft order, odd rounds reverse it.
func MyPickNumbers(teamCount, rounds, draftIndex int) []int {
	if teamCount <= 0 || rounds <= 0 || draftIndex < 0 || draftIndex >= teamCount {
		return nil
	}

	out := make([]int, 0, rounds)
	for round := 0; round < rounds; round++ {
		if round%2 == 0 {
			out = append(out, round*teamCount+draftIndex+1)
		} else {
			out = append(out, round*teamCount+(teamCount-draftIndex))
		}
	}
	return out
}

// PicksUntilNext is the distance from currentPick to the next pick in
// myPicks strictly after it, or 0 when none remain. myPicks must be
// ascending, which MyPickNumbers guarantees.
func PicksUntilNext(currentPick int, myPicks []int) int {
	for _, pick := range myPicks {
		if pick > currentPick {
			return pick - currentPick
		}
	}
	return 0
}

// TeamSlotForPick inverts the snake order: it returns the 0-based
// round-one slot that owns the given overall pick number, or -1 for
// out-of-range input.
func TeamSlotForPick(pickNumber, teamCount int) int {
	if pickNumber <= 0 || teamCount <= 0 {
		return -1
	}

	round := (pickNumber - 1) / teamCount
	offset := (pickNumber - 1) % teamCount
	if round%2 == 1 {
		offset = teamCount - 1 - offset
	}
	return offset
}

// RoundOfPick returns the 1-based round an overall pick number falls in.
func RoundOfPick(pickNumber, teamCount int) int {
	if pickNumber <= 0 || teamCount <= 0 {
		return 0
	}
	return (pickNumber-1)/teamCount + 1
}
