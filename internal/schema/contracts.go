package schema

// Kind is the item type discriminant.
type Kind string

const (
	KindStory   Kind = "story"
	KindComment Kind = "comment"
	KindJob     Kind = "job"
	KindPoll    Kind = "poll"
	KindPollOpt Kind = "pollopt"
)

// Kinds returns every item kind.
func Kinds() []Kind {
	return []Kind{KindStory, KindComment, KindJob, KindPoll, KindPollOpt}
}

// ParseKind maps a decoded "type" value onto a Kind.
func ParseKind(v any) (Kind, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	for _, k := range Kinds() {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Contract returns the full contract (common base plus refinement) for k.
func (k Kind) Contract() Contract {
	return AllOf(string(k), CommonItem, refinements[k])
}

func kindNames() []string {
	names := make([]string, 0, len(Kinds()))
	for _, k := range Kinds() {
		names = append(names, string(k))
	}
	return names
}

// CommonItem applies to every item.
var CommonItem = NewContract("item",
	Required("id", "type", "time"),
	Typed("id", TypeInteger),
	Typed("type", TypeString),
	Enum("type", kindNames()...),
	Typed("by", TypeString),
	Typed("time", TypeInteger),
	Typed("text", TypeString),
	Typed("title", TypeString),
	Typed("url", TypeString),
	Typed("score", TypeInteger),
	Typed("descendants", TypeInteger),
	Typed("kids", TypeIntegerArray),
	Typed("dead", TypeBoolean),
	Typed("deleted", TypeBoolean),
	Typed("parent", TypeInteger),
	Typed("poll", TypeInteger),
	Typed("parts", TypeIntegerArray),
)

var refinements = map[Kind]Contract{
	KindComment: NewContract("comment",
		Const("type", string(KindComment)),
		Required("parent"),
		Typed("parent", TypeInteger),
	),
	KindStory: NewContract("story",
		Const("type", string(KindStory)),
		Typed("title", TypeString),
		Typed("score", TypeInteger),
	),
	KindJob: NewContract("job",
		Const("type", string(KindJob)),
	),
	KindPoll: NewContract("poll",
		Const("type", string(KindPoll)),
		Typed("parts", TypeArray),
	),
	KindPollOpt: NewContract("pollopt",
		Const("type", string(KindPollOpt)),
		Typed("poll", TypeInteger),
	),
}

// Per-kind contracts.
var (
	Comment = KindComment.Contract()
	Story   = KindStory.Contract()
	Job     = KindJob.Contract()
	Poll    = KindPoll.Contract()
	PollOpt = KindPollOpt.Contract()
)

// User applies to user records.
var User = NewContract("user",
	Required("id", "created", "karma"),
	Typed("id", TypeString),
	MinLength("id", 1),
	Typed("created", TypeInteger),
	Minimum("created", 0),
	Typed("karma", TypeInteger),
	Typed("about", TypeString),
	Typed("submitted", TypeIntegerArray),
)
