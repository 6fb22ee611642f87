package landmark

// Connection joins two landmark indices in a wireframe.
type Connection struct {
	From, To int
}

// Landmark counts of the holistic model.
const (
	HandLandmarks = 21
	PoseLandmarks = 33
	FaceLandmarks = 468
)

// HandConnections is the 21-point hand skeleton.
var HandConnections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 4},
	{0, 5}, {5, 6}, {6, 7}, {7, 8},
	{5, 9}, {9, 10}, {10, 11}, {11, 12},
	{9, 13}, {13, 14}, {14, 15}, {15, 16},
	{13, 17}, {0, 17}, {17, 18}, {18, 19}, {19, 20},
}

// PoseConnections is the 33-point body skeleton.
var PoseConnections = []Connection{
	{0, 1}, {1, 2}, {2, 3}, {3, 7}, {0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10}, {11, 12},
	{11, 13}, {13, 15}, {15, 17}, {15, 19}, {15, 21}, {17, 19},
	{12, 14}, {14, 16}, {16, 18}, {16, 20}, {16, 22}, {18, 20},
	{11, 23}, {12, 24}, {23, 24},
	{23, 25}, {24, 26}, {25, 27}, {26, 28},
	{27, 29}, {28, 30}, {29, 31}, {30, 32}, {27, 31}, {28, 32},
}

// faceOval is the closed outline of the 468-point face mesh.
var faceOval = []int{
	10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
	397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
	172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
}

// Open contour paths of the face mesh. Each eye and lip edge is split into
// an upper and lower path sharing both corner points.
var (
	lipsOuterLower = []int{61, 146, 91, 181, 84, 17, 314, 405, 321, 375, 291}
	lipsOuterUpper = []int{61, 185, 40, 39, 37, 0, 267, 269, 270, 409, 291}
	lipsInnerLower = []int{78, 95, 88, 178, 87, 14, 317, 402, 318, 324, 308}
	lipsInnerUpper = []int{78, 191, 80, 81, 82, 13, 312, 311, 310, 415, 308}

	leftEyeLower  = []int{263, 249, 390, 373, 374, 380, 381, 382, 362}
	leftEyeUpper  = []int{263, 466, 388, 387, 386, 385, 384, 398, 362}
	leftBrowLower = []int{276, 283, 282, 295, 285}
	leftBrowUpper = []int{300, 293, 334, 296, 336}

	rightEyeLower  = []int{33, 7, 163, 144, 145, 153, 154, 155, 133}
	rightEyeUpper  = []int{33, 246, 161, 160, 159, 158, 157, 173, 133}
	rightBrowLower = []int{46, 53, 52, 65, 55}
	rightBrowUpper = []int{70, 63, 105, 66, 107}
)

// FaceOvalConnections is the closed face outline alone.
var FaceOvalConnections = loop(faceOval)

// FaceConnections is the face mesh contour set: oval, lips, eyes and brows.
var FaceConnections = concat(
	FaceOvalConnections,
	path(lipsOuterLower), path(lipsOuterUpper),
	path(lipsInnerLower), path(lipsInnerUpper),
	path(leftEyeLower), path(leftEyeUpper),
	path(leftBrowLower), path(leftBrowUpper),
	path(rightEyeLower), path(rightEyeUpper),
	path(rightBrowLower), path(rightBrowUpper),
)

// Connections returns the wireframe for a category.
func Connections(c Category) []Connection {
	switch c {
	case Face:
		return FaceConnections
	case Pose:
		return PoseConnections
	case LeftHand, RightHand:
		return HandConnections
	}
	return nil
}

func loop(idx []int) []Connection {
	conns := make([]Connection, 0, len(idx))
	for i := range idx {
		conns = append(conns, Connection{From: idx[i], To: idx[(i+1)%len(idx)]})
	}
	return conns
}

func path(idx []int) []Connection {
	conns := make([]Connection, 0, len(idx)-1)
	for i := 1; i < len(idx); i++ {
		conns = append(conns, Connection{From: idx[i-1], To: idx[i]})
	}
	return conns
}

func concat(sets ...[]Connection) []Connection {
	var out []Connection
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
