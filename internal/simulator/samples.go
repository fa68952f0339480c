package simulator

type chatMessage struct {
	text    string
	sender  string
	channel string
}

// chatMessages cycles through one message per chat rule plus one noise
// message that the filter drops.
var chatMessages = []chatMessage{
	{"I'm blocked on the API integration, need help ASAP", "Priya Shah", "#platform"},
	{"Can you approve the Q3 budget before the board meeting?", "Marcus Lee", "#finance"},
	{"The launch checklist is due by Friday, please finish your sections", "Dana Ortiz", "#launch"},
	{"Could you share the deployment runbook when you get a chance?", "Sam Okafor", "#ops"},
	{"<@U024BE7LH> the staging deploy is failing again, can you take a look", "Jo Becker", "#platform"},
	{"I'll have the migration plan ready for review tomorrow", "Ana Costa", "#data"},
	{"FYI the vendor moved the kickoff call to next week", "Lena Fischer", "#general"},
	{"thanks!", "Marcus Lee", "#general"},
}

type sampleTask struct {
	name      string
	notes     string
	tags      []string
	project   string
	dueInDays *int
}

func days(n int) *int { return &n }

var sampleTasks = []sampleTask{
	{name: "Write report", project: "Reporting", dueInDays: days(-1)},
	{name: "Blocked: waiting on legal sign-off", notes: "Contract redlines pending", project: "Partnerships"},
	{name: "Ship onboarding flow", notes: "Final QA pass", project: "Growth", dueInDays: days(1)},
	{name: "Review vendor contract", project: "Procurement"},
	{name: "Prepare quarterly roadmap", project: "Planning", dueInDays: days(3)},
	{name: "Update team wiki", project: "Internal"},
}

type businessMessage struct {
	text   string
	sender string
}

var businessMessages = []businessMessage{
	{"My package arrived damaged. I want my money back.", "+15550002"},
	{"Is the blue shirt available in size M?", "Lee"},
	{"Need the invoice today for accounting please", "+15550005"},
	{"Hello!", "+15550003"},
	{"Thank you so much, the cake was amazing and everyone loved it", "Rosa"},
}
