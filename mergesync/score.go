package mergesync

import "bitbucket.org/mmjourneys/travel_backend/models"

// Score rates a source record's payment evidence: 10 for a PAID status plus
// one per recorded payment event.
func Score(rec SourceRecord) int {
	score := rec.PaymentEvidenceCount
	if NormalizePaymentStatus(rec.PaymentStatusText, rec.PaidFlag) == models.PaymentStatusPaid {
		score += 10
	}
	return score
}

// BetterPrimary reports whether candidate should replace current as a group's
// primary. Higher score wins; on an exact tie the operations system of record
// (tourdesk) wins over any other source. Never random.
func BetterPrimary(candidate, current SourceRecord) bool {
	cs, ps := Score(candidate), Score(current)
	if cs != ps {
		return cs > ps
	}
	return candidate.SourceSystem == models.SourceSystemTourdesk &&
		current.SourceSystem != models.SourceSystemTourdesk
}
