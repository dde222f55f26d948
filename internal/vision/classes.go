package vision

import "fmt"

// COCOClassNames is the class vocabulary the bundled YOLO-style model was
// trained on. DetectorConfig.ClassIndex resolves classes of interest
// against this list.
var COCOClassNames = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake",
	"chair", "couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop",
	"mouse", "remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier", "toothbrush",
}

// COCOClassIndex resolves a class name to its index in COCOClassNames, for
// use as DetectorConfig.ClassIndex.
func COCOClassIndex(name string) (int, error) {
	for i, n := range COCOClassNames {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown class %q", name)
}
