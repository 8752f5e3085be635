package scoring

// aggregateByPatient reduces the derived rows to per-patient statistics and
// broadcasts each aggregate back onto every row of that patient. Rates are
// means over the patient's full event count, not over the matching-type
// subset, so a patient with zero matching events gets a rate of 0 without any
// divide-by-zero guard.
func aggregateByPatient(rows []DerivedRow) {
	type totals struct {
		events          float64
		shortRefills    float64
		coverageChecks  float64
		coverageFails   float64
		remindersIgnored float64
		daysSinceLast   float64
	}

	byPatient := make(map[string]*totals)
	for i := range rows {
		t := byPatient[rows[i].Patient.ID]
		if t == nil {
			t = &totals{}
			byPatient[rows[i].Patient.ID] = t
		}
		t.events++
		t.shortRefills += float64(rows[i].ShortRefill)
		t.coverageChecks += float64(rows[i].CoverageCheck)
		t.coverageFails += float64(rows[i].CoverageCheckFail)
		t.remindersIgnored += float64(rows[i].ReminderIgnored)
		t.daysSinceLast += rows[i].DaysSinceLast
	}

	for i := range rows {
		t := byPatient[rows[i].Patient.ID]
		rows[i].ShortRefillCount = t.shortRefills
		rows[i].CoverageCheckAttempts = t.coverageChecks
		rows[i].CoverageCheckFailRate = t.coverageFails / t.events
		rows[i].ReminderIgnoreRate = t.remindersIgnored / t.events
		rows[i].AvgReminderResponseDelay = t.daysSinceLast / t.events
	}
}
