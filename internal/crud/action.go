package crud

// Action is the unit of permission granularity.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every CRUD action.
var Actions = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

func (a Action) String() string { return string(a) }
