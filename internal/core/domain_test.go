package core

import (
	"strings"
	"testing"
)

func TestProposalResolve(t *testing.T) {
	tests := []struct {
		name     string
		yes, no  int
		abstain  int
		minVotes int
		want     ProposalResult
	}{
		{"clear approval", 4, 1, 0, 5, ResultApproved},
		{"clear denial", 1, 4, 0, 5, ResultDenied},
		{"below quorum", 3, 1, 0, 5, ResultNoQuorum},
		{"tie denies", 3, 3, 0, 5, ResultDenied},
		{"abstain does not count toward quorum", 2, 2, 10, 5, ResultNoQuorum},
		{"quorum exactly met", 3, 2, 0, 5, ResultApproved},
		{"zero quorum approves majority", 1, 0, 0, 0, ResultApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Proposal{YesCount: tt.yes, NoCount: tt.no, AbstainCount: tt.abstain}
			if got := p.Resolve(tt.minVotes); got != tt.want {
				t.Errorf("Resolve(%d) = %s, want %s", tt.minVotes, got, tt.want)
			}
		})
	}
}

func TestProposalTotalVotes(t *testing.T) {
	p := Proposal{YesCount: 2, NoCount: 3, AbstainCount: 4}
	if got := p.TotalVotes(); got != 9 {
		t.Errorf("TotalVotes = %d, want 9", got)
	}
}

func TestProposalValidateNew(t *testing.T) {
	valid := Proposal{Title: "Buy new servers", Description: "We need them"}
	if err := valid.ValidateNew(); err != nil {
		t.Errorf("valid proposal rejected: %v", err)
	}

	tests := []struct {
		name     string
		proposal Proposal
		want     error
	}{
		{"empty title", Proposal{Description: "x"}, ErrEmptyTitle},
		{"whitespace title", Proposal{Title: "   ", Description: "x"}, ErrEmptyTitle},
		{"long title", Proposal{Title: strings.Repeat("a", 201), Description: "x"}, ErrTitleTooLong},
		{"empty description", Proposal{Title: "t"}, ErrEmptyDescription},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.proposal.ValidateNew(); err != tt.want {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestVoteChoiceValid(t *testing.T) {
	for _, c := range []VoteChoice{VoteYes, VoteNo, VoteAbstain} {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if VoteChoice("maybe").Valid() {
		t.Error("unknown choice should be invalid")
	}
}
