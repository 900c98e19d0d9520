package support

import (
	"fmt"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/crbook/internal/fields"
	"github.com/MeKo-Tech/crbook/internal/pipeline"
)

func (testCtx *TestContext) theExtractionServerIsRunning() error {
	return testCtx.StartServer(false)
}

func (testCtx *TestContext) theExtractionServerIsRunningWithAVisionModel() error {
	return testCtx.StartServer(true)
}

func (testCtx *TestContext) theVisionModelReadsRegistrationNumber(regNo string) error {
	if testCtx.Vision == nil {
		return fmt.Errorf("server was started without a vision model")
	}
	testCtx.Vision.Entries = []pipeline.FieldEntry{
		{Name: fields.RegistrationNumberField, Value: fields.Text(regNo)},
		{Name: fields.ChassisNumberField, Value: fields.Absent},
	}
	return nil
}

func (testCtx *TestContext) usePhoto(name string) error {
	data, err := outlinePhoto()
	if err != nil {
		return fmt.Errorf("failed to encode photo: %w", err)
	}
	testCtx.Photo = data
	testCtx.PhotoName = name
	return nil
}

func (testCtx *TestContext) aDrivingLicencePhoto() error {
	return testCtx.usePhoto("licence.png")
}

func (testCtx *TestContext) aCRBookPhotoWithRegistrationNumber(regNo string) error {
	testCtx.CRBook.SetRegistration(regNo)
	return testCtx.usePhoto("crbook.png")
}

func (testCtx *TestContext) aCRBookPhotoWithoutARegistrationNumber() error {
	testCtx.CRBook.SetRegistration("")
	return testCtx.usePhoto("crbook.png")
}

func (testCtx *TestContext) aFileThatIsNotAnImage() error {
	testCtx.Photo = []byte("this is not an image")
	testCtx.PhotoName = "notes.png"
	return nil
}

// RegisterDocumentSteps registers server setup and photo steps.
func (testCtx *TestContext) RegisterDocumentSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the extraction server is running$`, testCtx.theExtractionServerIsRunning)
	sc.Step(`^the extraction server is running with a vision model$`, testCtx.theExtractionServerIsRunningWithAVisionModel)
	sc.Step(`^the vision model reads registration number "([^"]*)"$`, testCtx.theVisionModelReadsRegistrationNumber)

	sc.Step(`^a driving licence photo$`, testCtx.aDrivingLicencePhoto)
	sc.Step(`^a CR book photo with registration number "([^"]*)"$`, testCtx.aCRBookPhotoWithRegistrationNumber)
	sc.Step(`^a CR book photo without a registration number$`, testCtx.aCRBookPhotoWithoutARegistrationNumber)
	sc.Step(`^a file that is not an image$`, testCtx.aFileThatIsNotAnImage)
}
