package empp

// Action is the closed set of tagged actions. Each case is a distinct type so
// dispatch over actions is a type switch rather than a code comparison.
type Action interface {
	Code() Code
	sealed()
}

type Claim struct{}
type Respawn struct{}
type Withdraw struct{}

// Like tags a 1 HP transfer from a reactor to the author of MsgID.
type Like struct{ MsgID uint32 }

// Dislike tags the reactor's payment for a negative reaction on MsgID.
type Dislike struct{ MsgID uint32 }

// Disliked tags the author's penalty for a negative reaction on MsgID.
type Disliked struct{ MsgID uint32 }

// BottleReply tags the reply sender's payment; MsgID is the reply.
type BottleReply struct{ MsgID uint32 }

// BottleReplied tags the original author's payment; MsgID is the original.
type BottleReplied struct{ MsgID uint32 }

// ChiliReply tags a transfer from a reply sender to the original author.
type ChiliReply struct{ MsgID uint32 }

func (Claim) Code() Code         { return CodeClaim }
func (Respawn) Code() Code       { return CodeRespawn }
func (Withdraw) Code() Code      { return CodeWithdraw }
func (Like) Code() Code          { return CodeLike }
func (Dislike) Code() Code       { return CodeDislike }
func (Disliked) Code() Code      { return CodeDisliked }
func (BottleReply) Code() Code   { return CodeBottleReply }
func (BottleReplied) Code() Code { return CodeBottleReplied }
func (ChiliReply) Code() Code    { return CodeChiliReply }

func (Claim) sealed()         {}
func (Respawn) sealed()       {}
func (Withdraw) sealed()      {}
func (Like) sealed()          {}
func (Dislike) sealed()       {}
func (Disliked) sealed()      {}
func (BottleReply) sealed()   {}
func (BottleReplied) sealed() {}
func (ChiliReply) sealed()    {}

// Subject returns the message id carried by a, if any.
func Subject(a Action) (uint32, bool) {
	switch v := a.(type) {
	case Like:
		return v.MsgID, true
	case Dislike:
		return v.MsgID, true
	case Disliked:
		return v.MsgID, true
	case BottleReply:
		return v.MsgID, true
	case BottleReplied:
		return v.MsgID, true
	case ChiliReply:
		return v.MsgID, true
	default:
		return 0, false
	}
}

// Marshal encodes a. It cannot fail: every case carries what its code needs.
func Marshal(a Action) []byte {
	b := header(a.Code())
	if id, ok := Subject(a); ok {
		b = appendSubject(b, id)
	}
	return b
}

// Parse decodes b into an Action, or nil when b is not one of our tags.
func Parse(b []byte) Action {
	t, ok := Decode(b)
	if !ok {
		return nil
	}
	return t.Action()
}

// Action converts a decoded tag into its union case.
func (t Tag) Action() Action {
	switch t.Code {
	case CodeClaim:
		return Claim{}
	case CodeRespawn:
		return Respawn{}
	case CodeWithdraw:
		return Withdraw{}
	case CodeLike:
		return Like{MsgID: t.MsgID}
	case CodeDislike:
		return Dislike{MsgID: t.MsgID}
	case CodeDisliked:
		return Disliked{MsgID: t.MsgID}
	case CodeBottleReply:
		return BottleReply{MsgID: t.MsgID}
	case CodeBottleReplied:
		return BottleReplied{MsgID: t.MsgID}
	case CodeChiliReply:
		return ChiliReply{MsgID: t.MsgID}
	default:
		return nil
	}
}
