package augment

import (
	"fmt"

	"liora/internal/analyzer"
)

var transitions = map[analyzer.Style][]string{
	analyzer.StyleCasual: {
		"Oh, by the way! I just remembered something fascinating about %s that I think you'd find interesting.",
		"Ooh, speaking of %s, here's a fun bit I came across!",
		"Wait, you'll love this, there's something cool about %s.",
		"That reminds me, I've got a neat little fact about %s for you.",
		"Okay, quick detour: %s is actually pretty wild, check this out.",
		"Fun fact time! Let me tell you a bit about %s.",
		"Hey, since we're here, let me share something about %s.",
		"You know what's interesting? %s. Here's a little background.",
		"I can't resist sharing this about %s!",
		"Random thought, but %s has a great story behind it.",
	},
	analyzer.StyleFormal: {
		"Speaking of %s, I found some interesting information that might be relevant to our conversation.",
		"If I may, here is some background on %s that may be of interest.",
		"Allow me to share a few details regarding %s.",
		"You may find the following information about %s relevant.",
		"With regard to %s, the following summary may be helpful.",
		"Permit me to add some context on %s.",
		"It may be worth noting a few facts about %s.",
		"For completeness, here is some information on %s.",
		"I would like to offer some additional context about %s.",
		"Concerning %s, here is a brief overview from a reliable reference.",
	},
	analyzer.StyleTechnical: {
		"Regarding %s, here's some technical background that could be useful.",
		"For reference, here's a concise summary of %s.",
		"Some context on %s that may inform the discussion:",
		"Here's the reference material on %s.",
		"Background data point: %s.",
		"Quick primer on %s, sourced from the encyclopedia.",
		"Relevant documentation-style overview of %s:",
		"To ground this in facts, here's what the reference says about %s.",
		"Supplementary context for %s:",
		"Summary of %s from an external reference:",
	},
}

// Transition announces a pivot to topic in the user's learned style. It
// never includes the encyclopedia text itself; callers append that.
func (p *Policy) Transition(topic, _ string) string {
	style := analyzer.StyleCasual
	if p.learner != nil {
		style = p.learner.CommunicationStyle()
	}
	bank, ok := transitions[style]
	if !ok {
		bank = transitions[analyzer.StyleCasual]
	}
	return fmt.Sprintf(bank[p.rnd.Intn(len(bank))], topic)
}
