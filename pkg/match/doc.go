// Package match selects donors and facilities for an emergency.
//
// FindCandidates is a two-step strategy with a typed result instead of
// error-driven control flow:
//
//	res := engine.FindCandidates(ctx, match.Query{
//		Center:      e.Location,
//		BloodGroup:  e.BloodGroup,
//		CountryCode: e.CountryCode,
//	})
//	if res.Degraded() {
//		// the live presence store failed; res.Candidates came from the
//		// durable donor table and carry no connection ids
//	}
//
// The live path is capped only by the radius (and MaxResults when set). The
// durable path applies the donation interval and a limit of 50 by default.
package match
