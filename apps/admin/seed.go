package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/bursary/core/course"
	"github.com/trezcool/bursary/core/fee"
)

type seedCourse struct {
	code, name  string
	credits     int
	fee         int64
	description string
}

type seedFaculty struct {
	code, name, description string
	courses                 []seedCourse
}

var seedFaculties = []seedFaculty{
	{
		code:        "CIS",
		name:        "Computer and Information Sciences",
		description: "Programs in Computer Science, Software Engineering and Data Science.",
		courses: []seedCourse{
			{"CS101", "Introduction to Computer Science", 3, 1500, "Fundamentals of computer science and programming"},
			{"CS102", "Programming Fundamentals", 3, 1500, "Basic programming concepts using Python"},
			{"CS201", "Data Structures and Algorithms", 4, 2000, "Advanced data structures and algorithm analysis"},
			{"CS203", "Web Development", 3, 1800, "Full-stack web development"},
			{"CS301", "Database Systems", 3, 1800, "Design and implementation of database systems"},
			{"CS401", "Machine Learning", 4, 2400, "ML algorithms and deep learning"},
		},
	},
	{
		code:        "DAD",
		name:        "Digital Arts and Design",
		description: "Creative digital media, animation and design.",
		courses: []seedCourse{
			{"DAD101", "Digital Design Fundamentals", 3, 1800, "Introduction to digital design principles and tools"},
			{"DAD103", "Color Theory", 2, 1200, "Understanding color in design"},
			{"DAD201", "3D Modeling", 4, 2400, "Creating 3D models and assets"},
			{"DAD203", "UI/UX Design", 3, 2000, "User interface and experience design"},
			{"ANI301", "3D Animation", 4, 2400, "Creating 3D animations using industry-standard software"},
		},
	},
	{
		code:        "BI",
		name:        "Business Informatics",
		description: "Business administration combined with information technology.",
		courses: []seedCourse{
			{"BI101", "Introduction to Business", 3, 1500, "Fundamentals of business administration"},
			{"BI103", "Accounting Principles", 3, 1500, "Financial and managerial accounting"},
			{"BI201", "Business Analytics", 3, 1800, "Using data analysis for business decision making"},
			{"BI301", "Business Intelligence", 4, 2000, "BI tools and data warehousing"},
		},
	},
	{
		code:        "ENG",
		name:        "Engineering",
		description: "Engineering disciplines and specializations.",
		courses: []seedCourse{
			{"ENG101", "Engineering Mathematics I", 4, 1600, "Mathematical methods for engineering applications"},
			{"ENG104", "Introduction to Engineering", 2, 1000, "Overview of engineering disciplines"},
			{"EE201", "Circuit Analysis", 4, 2000, "Electrical circuit theory"},
			{"MECH301", "Fluid Mechanics", 4, 2000, "Fluid dynamics and applications"},
			{"ENG401", "Senior Design Project", 6, 3000, "Capstone engineering project"},
		},
	},
}

var seedSchedule = []fee.NewStructure{
	{Category: fee.CategoryTuition, Name: "Credit Hour Fee (Standard)", Amount: decimal.NewFromInt(500), IsPerCredit: true, DisplayOrder: 1},
	{Category: fee.CategoryTuition, Name: "Registration Fee", Amount: decimal.NewFromInt(200), DisplayOrder: 2},
	{Category: fee.CategoryBus, Name: "Bus Service", Amount: decimal.NewFromInt(300), DisplayOrder: 1},
	{Category: fee.CategoryAdmin, Name: "Technology Fee", Amount: decimal.NewFromInt(150), DisplayOrder: 1},
	{Category: fee.CategoryOther, Name: "Library Access", Amount: decimal.NewFromInt(50), DisplayOrder: 1},
	{Category: fee.CategoryOther, Name: "Student Activities", Amount: decimal.NewFromInt(100), DisplayOrder: 2},
}

// seed loads the reference catalogue. Rows that already exist are left alone, so it can run more than once.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	faculties, err := cli.svc.Courses.QueryFaculties(ctx)
	if err != nil {
		return err
	}
	facultyIDs := make(map[string]string, len(faculties))
	for _, fac := range faculties {
		facultyIDs[fac.Code] = fac.ID
	}

	var nFaculties, nCourses, nFees int
	for _, sf := range seedFaculties {
		facID, ok := facultyIDs[sf.code]
		if !ok {
			fac, err := cli.svc.Courses.CreateFaculty(ctx, sf.code, sf.name, sf.description)
			if err != nil {
				return errors.Wrapf(err, "creating faculty %s", sf.code)
			}
			facID = fac.ID
			nFaculties++
		}

		for _, sc := range sf.courses {
			_, err := cli.svc.Courses.Create(ctx, course.NewCourse{
				Code:        sc.code,
				Name:        sc.name,
				Description: sc.description,
				CreditHours: sc.credits,
				TotalFee:    decimal.NewFromInt(sc.fee),
				FacultyID:   facID,
			})
			switch err {
			case nil:
				nCourses++
			case course.ErrCodeExists:
			default:
				return errors.Wrapf(err, "creating course %s", sc.code)
			}
		}
	}

	// the schedule is only seeded into an empty table; admins own it afterwards
	schedule, err := cli.svc.Fees.Query(ctx, nil)
	if err != nil {
		return err
	}
	if len(schedule) == 0 {
		for _, ns := range seedSchedule {
			if _, err := cli.svc.Fees.Create(ctx, ns); err != nil {
				return errors.Wrapf(err, "creating fee structure %q", ns.Name)
			}
			nFees++
		}
	}

	cli.printf("seeded %d faculties, %d courses, %d fee structures\n", nFaculties, nCourses, nFees)
	return nil
}
