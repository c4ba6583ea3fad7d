package statrelay

import "time"

// applyEvent folds a parsed event into the Aggregate. Under the default
// strict policy only payloads carrying both sub-patterns mutate user and
// action state; a lone registration or action is ignored. The historical
// looser behavior, applying each sub-pattern independently, stays
// available behind the independent flag.
//
// The caller holds the Store lock; raw message recording is handled by
// the Store since it happens for every text payload regardless of kind.
func applyEvent(agg *Aggregate, ev Event, now time.Time, independent bool) {
	switch ev.Kind {
	case EventRegistrationAndAction:
		agg.recordRegistration(ev.UserID, ev.UserName, now)
		agg.recordAction(ev.Amount, now)
	case EventRegistration:
		if independent {
			agg.recordRegistration(ev.UserID, ev.UserName, now)
		}
	case EventAction:
		if independent {
			agg.recordAction(ev.Amount, now)
		}
	}
}
