package listing

import (
	"nftmarket/internal/domain/model"
	"nftmarket/internal/events"
)

// Handle keeps each auction listing's bid history in step with the auction
// engine. Subscribe the store to the emitter the engine publishes to.
//
// Once a listing has left active it only takes bids placed before that,
// which can arrive late while another caller drains the auction's events.
func (s *Store) Handle(ev events.Event) error {
	switch p := ev.Data.(type) {
	case events.BidPlaced:
		return s.withEntry(ev.ListingID, func(l *model.Listing) {
			if l.Status != model.ListingActive && !p.Bid.Timestamp.Before(l.UpdatedAt) {
				return
			}
			if p.PreviousBid != nil {
				setBidStatus(l, p.PreviousBid.ID, model.BidOutbid)
			}
			l.Bids = append(l.Bids, p.Bid)
			b := p.Bid
			l.HighestBid = &b
			touch(l, ev)
		})
	case events.AuctionEnded:
		if p.WinningBid == nil {
			return nil
		}
		return s.withEntry(ev.ListingID, func(l *model.Listing) {
			if l.Status != model.ListingActive && !soldTo(l, p.Winner) {
				return
			}
			won := *p.WinningBid
			won.Status = model.BidWon
			if !setBidStatus(l, won.ID, model.BidWon) {
				l.Bids = append(l.Bids, won)
			}
			l.HighestBid = &won
			touch(l, ev)
		})
	case events.ListingCancelled:
		if p.Reason != events.CancelReasonAuction {
			return nil
		}
		return s.withEntry(ev.ListingID, func(l *model.Listing) {
			if l.Status != model.ListingActive {
				return
			}
			for i := range l.Bids {
				l.Bids[i].Status = model.BidCancelled
			}
			if l.HighestBid != nil {
				l.HighestBid.Status = model.BidCancelled
			}
			l.Status = model.ListingCancelled
			l.UpdatedAt = ev.Timestamp
		})
	}
	return nil
}

// BidCount is the number of bids mirrored onto the listing.
func (s *Store) BidCount(id string) (int, error) {
	e, err := s.lookup(id)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.l.Bids), nil
}

func (s *Store) withEntry(id string, fn func(l *model.Listing)) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	fn(&e.l)
	e.mu.Unlock()
	return nil
}

func touch(l *model.Listing, ev events.Event) {
	if l.Status == model.ListingActive {
		l.UpdatedAt = ev.Timestamp
	}
}

func soldTo(l *model.Listing, buyer string) bool {
	return l.Status == model.ListingSold && l.Sale != nil && l.Sale.Buyer == buyer
}

func setBidStatus(l *model.Listing, bidID string, st model.BidStatus) bool {
	for i := range l.Bids {
		if l.Bids[i].ID == bidID {
			l.Bids[i].Status = st
			return true
		}
	}
	return false
}
