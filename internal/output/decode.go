package output

// Data is a decoded output data frame. The concrete type is one of the
// readers in this package or Unknown; consumers type-switch over it.
type Data interface {
	Kind() Kind
}

// Unknown is a frame whose tag has no reader. It is not an error.
type Unknown struct {
	Tag   string
	Frame []byte
}

func (Unknown) Kind() Kind { return KindUnknown }

var readers = map[Kind]func([]byte) (Data, error){
	KindTransforms:              wrap(NewTransforms),
	KindRigidbodies:             wrap(NewRigidbodies),
	KindStaticRigidbodies:       wrap(NewStaticRigidbodies),
	KindBounds:                  wrap(NewBounds),
	KindSegmentationColors:      wrap(NewSegmentationColors),
	KindImages:                  wrap(NewImages),
	KindCollision:               wrap(NewCollision),
	KindEnvironmentCollision:    wrap(NewEnvironmentCollision),
	KindOverlap:                 wrap(NewOverlap),
	KindContainment:             wrap(NewContainment),
	KindNavMeshPath:             wrap(NewNavMeshPath),
	KindStaticCompositeObjects:  wrap(NewStaticCompositeObjects),
	KindDynamicCompositeObjects: wrap(NewDynamicCompositeObjects),
	KindStaticRobot:             wrap(NewStaticRobot),
	KindKeyboard:                wrap(NewKeyboard),
	KindMouse:                   wrap(NewMouse),
	KindLogMessage:              wrap(NewLogMessage),
	KindVersion:                 wrap(NewVersion),
	KindQuitSignal:              wrap(NewQuitSignal),
	KindFailedToReceive:         wrap(NewFailedToReceive),
}

func wrap[T Data](fn func([]byte) (T, error)) func([]byte) (Data, error) {
	return func(frame []byte) (Data, error) {
		d, err := fn(frame)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Decode reads a frame into its typed variant.
func Decode(frame []byte) (Data, error) {
	kind := KindOf(frame)
	read, ok := readers[kind]
	if !ok {
		return Unknown{Tag: DataTypeID(frame), Frame: frame}, nil
	}
	return read(frame)
}

// Each decodes every output data frame of resp, skipping the sentinel, and
// calls fn in order. It stops at the first error.
func (r Response) Each(fn func(Data) error) error {
	for _, f := range r.Frames() {
		d, err := Decode(f)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
