package output

// Kind identifies the schema of an output data frame.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransforms
	KindRigidbodies
	KindStaticRigidbodies
	KindBounds
	KindSegmentationColors
	KindImages
	KindCollision
	KindEnvironmentCollision
	KindOverlap
	KindContainment
	KindNavMeshPath
	KindStaticCompositeObjects
	KindDynamicCompositeObjects
	KindStaticRobot
	KindKeyboard
	KindMouse
	KindLogMessage
	KindVersion
	KindQuitSignal
	KindFailedToReceive
)

var kindTags = map[Kind]string{
	KindTransforms:              "tran",
	KindRigidbodies:             "rigi",
	KindStaticRigidbodies:       "srig",
	KindBounds:                  "boun",
	KindSegmentationColors:      "segm",
	KindImages:                  "imag",
	KindCollision:               "coll",
	KindEnvironmentCollision:    "enco",
	KindOverlap:                 "over",
	KindContainment:             "cont",
	KindNavMeshPath:             "path",
	KindStaticCompositeObjects:  "scom",
	KindDynamicCompositeObjects: "dcom",
	KindStaticRobot:             "srob",
	KindKeyboard:                "keyb",
	KindMouse:                   "mous",
	KindLogMessage:              "logm",
	KindVersion:                 "vers",
	KindQuitSignal:              "quit",
	KindFailedToReceive:         "ftre",
}

var tagKinds = func() map[string]Kind {
	m := make(map[string]Kind, len(kindTags))
	for k, tag := range kindTags {
		m[tag] = k
	}
	return m
}()

// Tag returns the four character identifier of the kind, or "" for
// KindUnknown.
func (k Kind) Tag() string {
	return kindTags[k]
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if tag, ok := kindTags[k]; ok {
		return tag
	}
	return "unknown"
}

// KindOf returns the kind of a frame. Unrecognized tags map to KindUnknown.
func KindOf(frame []byte) Kind {
	return tagKinds[DataTypeID(frame)]
}

// ParseKind maps a tag to its kind.
func ParseKind(tag string) (Kind, bool) {
	k, ok := tagKinds[tag]
	return k, ok
}
