package world

import "github.com/dkettler/gridroyale/internal/agent"

// DefaultTemplates is the roster agents are stamped from at init. Spawning
// cycles through it when agentCount exceeds its length.
var DefaultTemplates = []agent.Template{
	{
		Name:        "Rex",
		Personality: "aggressive and impulsive",
		Description: "A scarred brawler who opens every negotiation with his fists.",
		Base:        agent.Stats{HP: 100, Attack: 15, Defense: 5},
	},
	{
		Name:        "Vera",
		Personality: "cautious and strategic",
		Description: "A former scout who counts exits before she counts friends.",
		Base:        agent.Stats{HP: 90, Attack: 10, Defense: 8},
	},
	{
		Name:        "Silas",
		Personality: "treacherous and cunning",
		Description: "A smiling trader whose knives face every direction.",
		Base:        agent.Stats{HP: 85, Attack: 12, Defense: 6},
	},
	{
		Name:        "Mara",
		Personality: "loyal and brave",
		Description: "A shield-bearer who has never abandoned an ally.",
		Base:        agent.Stats{HP: 110, Attack: 11, Defense: 9},
	},
	{
		Name:        "Otto",
		Personality: "resourceful and patient",
		Description: "A tinkerer who wins by outlasting everyone else.",
		Base:        agent.Stats{HP: 95, Attack: 9, Defense: 10},
	},
	{
		Name:        "Kira",
		Personality: "cunning and strategic",
		Description: "A quiet archer who maps the field before loosing a shot.",
		Base:        agent.Stats{HP: 80, Attack: 14, Defense: 4},
	},
	{
		Name:        "Bram",
		Personality: "brave and impulsive",
		Description: "A laughing duelist who treats the arena like a stage.",
		Base:        agent.Stats{HP: 105, Attack: 13, Defense: 5},
	},
	{
		Name:        "Nadia",
		Personality: "cautious and resourceful",
		Description: "A medic turned fighter who hoards every advantage.",
		Base:        agent.Stats{HP: 100, Attack: 8, Defense: 11},
	},
	{
		Name:        "Joss",
		Personality: "treacherous and impulsive",
		Description: "A gambler who bets on betrayal and usually collects.",
		Base:        agent.Stats{HP: 88, Attack: 13, Defense: 5},
	},
	{
		Name:        "Elia",
		Personality: "loyal and strategic",
		Description: "A tactician who builds coalitions and then leads them.",
		Base:        agent.Stats{HP: 92, Attack: 10, Defense: 8},
	},
}
