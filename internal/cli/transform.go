package cli

import (
	"time"

	"github.com/spf13/cobra"

	"closet/internal/domain"
)

type resultOutput struct {
	Outcome  domain.Outcome `json:"outcome"`
	Path     string         `json:"path"`
	Original string         `json:"original"`
	Provider string         `json:"provider,omitempty"`
	Reason   domain.Reason  `json:"reason,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	Duration string         `json:"duration"`
}

func toOutput(res domain.Result) resultOutput {
	return resultOutput{
		Outcome:  res.Outcome,
		Path:     res.AssetPath(),
		Original: res.Original.Path,
		Provider: res.Provider,
		Reason:   res.Reason,
		Detail:   res.Detail,
		Duration: res.Duration.Round(time.Millisecond).String(),
	}
}

func newCutoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cutout PHOTO",
		Short: "Remove the background from a garment photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := photoArg(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Service.RemoveBackground(cmd.Context(), photo)
			if err != nil {
				return err
			}
			return printJSON(cmd, toOutput(res))
		},
	}
}

func newTryOnCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "try-on GARMENT PERSON",
		Short: "Render a garment onto a photo of a person",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			garment, err := photoArg(args[0])
			if err != nil {
				return err
			}
			person, err := photoArg(args[1])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Service.VirtualTryOn(cmd.Context(), garment, person)
			if err != nil {
				return err
			}
			return printJSON(cmd, toOutput(res))
		},
	}
}

func newCategorizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "categorize PHOTO",
		Short: "Tag a garment photo with category, colors and attributes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := photoArg(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.Service.Categorize(cmd.Context(), photo)
			if err != nil {
				return err
			}
			return printJSON(cmd, struct {
				Outcome  domain.Outcome `json:"outcome"`
				Provider string         `json:"provider,omitempty"`
				Reason   domain.Reason  `json:"reason,omitempty"`
				domain.Categorization
			}{res.Outcome, res.Provider, res.Reason, res.Categorization})
		},
	}
}

func newPaletteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "palette PHOTO",
		Short: "Print the dominant palette colors of a photo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			photo, err := photoArg(args[0])
			if err != nil {
				return err
			}
			rt, err := openRuntime(cmd, opts)
			if err != nil {
				return err
			}
			defer rt.Close()

			colors, err := rt.Service.ExtractColors(cmd.Context(), photo)
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]any{"colors": colors})
		},
	}
}
