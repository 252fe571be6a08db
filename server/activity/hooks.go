package activity

import "github.com/beevik/etree"

// Hooks are optional extension points threaded through parsing and
// serialization. Any slot may be nil. Start* slots returning false
// suppress the default behavior that would otherwise follow.
type Hooks struct {
	StartParseActivity func(el *etree.Element, act *Activity) bool
	EndParseActivity   func(el *etree.Element, act *Activity)

	StartParseObject func(el *etree.Element, obj *ActivityObject) bool
	EndParseObject   func(el *etree.Element, obj *ActivityObject)

	StartWriteActivity func(act *Activity, w XMLWriter) bool
	EndWriteActivity   func(act *Activity, w XMLWriter)

	StartWriteObject func(obj *ActivityObject, w XMLWriter) bool
	EndWriteObject   func(obj *ActivityObject, w XMLWriter)

	StartActivityMap func(act *Activity, m map[string]any) bool
	EndActivityMap   func(act *Activity, m map[string]any)

	StartObjectMap func(obj *ActivityObject, m map[string]any) bool
	EndObjectMap   func(obj *ActivityObject, m map[string]any)

	// ResolveLocal may pre-empt FindLocalObject. Returning handled=true
	// means the hook owns the result, found or not.
	ResolveLocal func(uris []string, objType string) (obj *ActivityObject, handled bool)
}

func (h *Hooks) startParseActivity(el *etree.Element, act *Activity) bool {
	if h == nil || h.StartParseActivity == nil {
		return true
	}
	return h.StartParseActivity(el, act)
}

func (h *Hooks) endParseActivity(el *etree.Element, act *Activity) {
	if h != nil && h.EndParseActivity != nil {
		h.EndParseActivity(el, act)
	}
}

func (h *Hooks) startParseObject(el *etree.Element, obj *ActivityObject) bool {
	if h == nil || h.StartParseObject == nil {
		return true
	}
	return h.StartParseObject(el, obj)
}

func (h *Hooks) endParseObject(el *etree.Element, obj *ActivityObject) {
	if h != nil && h.EndParseObject != nil {
		h.EndParseObject(el, obj)
	}
}

func (h *Hooks) startWriteActivity(act *Activity, w XMLWriter) bool {
	if h == nil || h.StartWriteActivity == nil {
		return true
	}
	return h.StartWriteActivity(act, w)
}

func (h *Hooks) endWriteActivity(act *Activity, w XMLWriter) {
	if h != nil && h.EndWriteActivity != nil {
		h.EndWriteActivity(act, w)
	}
}

func (h *Hooks) startWriteObject(obj *ActivityObject, w XMLWriter) bool {
	if h == nil || h.StartWriteObject == nil {
		return true
	}
	return h.StartWriteObject(obj, w)
}

func (h *Hooks) endWriteObject(obj *ActivityObject, w XMLWriter) {
	if h != nil && h.EndWriteObject != nil {
		h.EndWriteObject(obj, w)
	}
}

func (h *Hooks) startActivityMap(act *Activity, m map[string]any) bool {
	if h == nil || h.StartActivityMap == nil {
		return true
	}
	return h.StartActivityMap(act, m)
}

func (h *Hooks) endActivityMap(act *Activity, m map[string]any) {
	if h != nil && h.EndActivityMap != nil {
		h.EndActivityMap(act, m)
	}
}

func (h *Hooks) startObjectMap(obj *ActivityObject, m map[string]any) bool {
	if h == nil || h.StartObjectMap == nil {
		return true
	}
	return h.StartObjectMap(obj, m)
}

func (h *Hooks) endObjectMap(obj *ActivityObject, m map[string]any) {
	if h != nil && h.EndObjectMap != nil {
		h.EndObjectMap(obj, m)
	}
}

func (h *Hooks) resolveLocal(uris []string, objType string) (*ActivityObject, bool) {
	if h == nil || h.ResolveLocal == nil {
		return nil, false
	}
	return h.ResolveLocal(uris, objType)
}
