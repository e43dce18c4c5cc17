package identity

// gameIndex is the derived UID state of one game.
type gameIndex struct {
	bindings map[string]UidBinding
	order    []string
	active   string
	// manual is the surviving manual registrations, in registration order.
	manual []UidBinding
}

func (gi *gameIndex) add(b UidBinding) {
	gi.bindings[b.Uid] = b
	gi.order = append(gi.order, b.Uid)
}

// buildGameIndex derives one game's index from the bound credentials (in
// binding order), the manual registrations and the previously active UID.
//
// Credential UIDs come first, then verified, then manual. A manual entry whose
// UID a credential also reports is dropped from the returned manual set, so
// removing that credential later removes the UID entirely.
func buildGameIndex(game Game, creds []Credential, manual []UidBinding, prevActive string) gameIndex {
	gi := gameIndex{bindings: make(map[string]UidBinding)}

	for _, c := range creds {
		for _, uid := range c.Uids(game) {
			if uid == "" {
				continue
			}
			if _, ok := gi.bindings[uid]; ok {
				continue
			}
			gi.add(UidBinding{Uid: uid, Origin: OriginCredential, OwnerID: c.OwnerID()})
		}
	}

	kept := make(map[string]struct{}, len(manual))
	for _, origin := range []Origin{OriginVerified, OriginManual} {
		for _, b := range manual {
			if b.Origin != origin || b.Uid == "" {
				continue
			}
			if _, ok := gi.bindings[b.Uid]; ok {
				continue
			}
			gi.add(UidBinding{Uid: b.Uid, Origin: origin})
			kept[b.Uid] = struct{}{}
		}
	}
	for _, b := range manual {
		if _, ok := kept[b.Uid]; ok {
			gi.manual = append(gi.manual, gi.bindings[b.Uid])
			delete(kept, b.Uid)
		}
	}

	switch {
	case prevActive != "" && gi.has(prevActive):
		gi.active = prevActive
	case len(gi.order) > 0:
		gi.active = gi.order[0]
	}
	return gi
}

func (gi *gameIndex) has(uid string) bool {
	_, ok := gi.bindings[uid]
	return ok
}
