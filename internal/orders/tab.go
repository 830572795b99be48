package orders

import "strings"

type Tab string

const (
	PayToBoard    Tab = "pay_to_board"
	ReadyToFly    Tab = "ready_to_fly"
	PlantsAreHome Tab = "plants_are_home"
	JourneyMishap Tab = "journey_mishap"
)

// AllTabs lists the buyer tabs in display order.
var AllTabs = []Tab{PayToBoard, ReadyToFly, PlantsAreHome, JourneyMishap}

var tabTitles = map[Tab]string{
	PayToBoard:    "Pay to Board",
	ReadyToFly:    "Ready to Fly",
	PlantsAreHome: "Plants are Home",
	JourneyMishap: "Journey Mishap",
}

// ParseTab accepts wire identifiers ("ready_to_fly") and display titles
// ("Ready to Fly") in any case.
func ParseTab(s string) (Tab, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	t := Tab(key)
	if _, ok := tabTitles[t]; !ok {
		return "", false
	}
	return t, true
}

func (t Tab) Title() string {
	return tabTitles[t]
}

func (t Tab) String() string {
	return string(t)
}
